package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/shadowchat/internal/app"
	"github.com/vovakirdan/shadowchat/internal/config"
)

var passFlag string

var createCmd = &cobra.Command{
	Use:   "create ROOM",
	Short: "Create a password-protected room and enter it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *app.Client, _ config.Config) error {
			pass, err := password(cmd)
			if err != nil {
				return err
			}
			if _, err := c.Create(ctx, args[0], pass); err != nil {
				return err
			}
			return chat(ctx, c)
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join ROOM",
	Short: "Join an existing room with its password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *app.Client, _ config.Config) error {
			pass, err := password(cmd)
			if err != nil {
				return err
			}
			if _, err := c.Join(ctx, args[0], pass); err != nil {
				return err
			}
			return chat(ctx, c)
		})
	},
}

var generalCmd = &cobra.Command{
	Use:   "general",
	Short: "Wake the backend and enter the open general room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *app.Client, _ config.Config) error {
			if _, err := c.General(ctx); err != nil {
				return err
			}
			return chat(ctx, c)
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Re-enter the last active room with the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *app.Client, _ config.Config) error {
			return chat(ctx, c)
		})
	},
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local Shadow backend for development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.DevServer.Addr = addr
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			cfg.DevServer.DBPath = db
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(cfg.DevServer, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "shadow dev backend on %s\n", cfg.DevServer.Addr)
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{createCmd, joinCmd} {
		cmd.Flags().StringVarP(&passFlag, "pass", "p", "", "room password (prompted when omitted)")
	}
	devserverCmd.Flags().String("addr", "", "HTTP listen address")
	devserverCmd.Flags().String("db", "", "SQLite path for rooms and history (:memory: by default)")
}

func password(cmd *cobra.Command) (string, error) {
	if passFlag != "" {
		return passFlag, nil
	}
	return prompt(cmd.InOrStdin(), cmd.ErrOrStderr(), "password")
}
