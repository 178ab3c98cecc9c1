package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/shadowchat/internal/app"
	"github.com/vovakirdan/shadowchat/internal/config"
	shadowlog "github.com/vovakirdan/shadowchat/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Terminal client for Shadow, the ephemeral password-gated group chat",
	Long: `shadow creates or joins a password-protected room and opens a live chat
in the terminal. "shadow devserver" runs a local stand-in backend.`,
	SilenceUsage: true,
}

var flags struct {
	configPath string
	logLevel   string
	serverURL  string
	apiURL     string
	statePath  string
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file path (default ./shadow.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error, off")
	pf.StringVar(&flags.serverURL, "server-url", "", "websocket URL of the backend")
	pf.StringVar(&flags.apiURL, "api-url", "", "REST base URL of the backend")
	pf.StringVar(&flags.statePath, "state", "", "path of the local state database")

	rootCmd.AddCommand(createCmd, joinCmd, generalCmd, chatCmd, devserverCmd)
}

// setup loads configuration with flag overrides and builds the logger.
func setup() (config.Config, *zerolog.Logger, error) {
	bootstrap := shadowlog.New("warn")
	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, nil, err
	}
	cfg.UpdateFrom(config.Config{
		LogLevel:  flags.logLevel,
		ServerURL: flags.serverURL,
		APIURL:    flags.apiURL,
		StatePath: flags.statePath,
	})

	logger := shadowlog.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Str("server_url", cfg.ServerURL).Str("api_url", cfg.APIURL).Msg("configuration loaded")
	return cfg, logger, nil
}

// withClient runs fn with a client bound to a signal-aware context.
func withClient(fn func(ctx context.Context, c *app.Client, cfg config.Config) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := app.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(ctx, client, cfg)
}

// chat opens the chat view on stdin/stdout.
func chat(ctx context.Context, c *app.Client) error {
	return c.Chat(ctx, app.ChatOptions{
		In:    os.Stdin,
		Out:   os.Stdout,
		Width: terminalWidth(),
		Clear: true,
	})
}

func terminalWidth() int {
	n, err := strconv.Atoi(os.Getenv("COLUMNS"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// prompt asks for a value on out and reads one line from in.
func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}
