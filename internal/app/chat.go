package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/render"
	"github.com/vovakirdan/shadowchat/internal/transport/ws"
)

const clearScreen = "\033[H\033[2J"

const chatHelp = `commands:
  /reply N text        reply to message N
  /react N emoji       react to message N
  /delete N            delete your message N
  /image path [caption] upload and send an image
  /help                show this help
  /quit                leave the room`

// ChatOptions controls the terminal chat loop.
type ChatOptions struct {
	In  io.Reader
	Out io.Writer
	// Width right-aligns own messages when positive.
	Width int
	// Clear wipes the terminal before each redraw.
	Clear bool
}

// Chat enters the stored active room and runs the chat loop until the user
// quits, the connection drops or ctx is done.
func (c *Client) Chat(ctx context.Context, opts ChatOptions) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	if st.RoomID == "" {
		return core.ErrNoActiveRoom
	}

	redraw := make(chan struct{}, 1)
	notify := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}
	bell := make(chan struct{}, 1)

	engine := core.NewEngine(
		core.Scope{RoomID: st.RoomID, SessionID: st.SessionID},
		core.WithLogger(c.log),
		core.WithNoticeTTL(c.cfg.NoticeTTL),
		core.WithHooks(core.Hooks{
			Alert: func(core.Message) {
				select {
				case bell <- struct{}{}:
				default:
				}
			},
			ScrollToBottom: notify,
			Changed:        notify,
		}),
	)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	session, err := ws.Enter(dialCtx, c.cfg.ServerURL, engine, c.log)
	cancel()
	if err != nil {
		return fmt.Errorf("enter room %s: %w", st.RoomID, err)
	}
	defer session.Close()

	loop := &chatLoop{
		client:  c,
		session: session,
		engine:  engine,
		out:     opts.Out,
		clear:   opts.Clear,
		renderer: render.New(render.Options{
			ReactionLimit: c.cfg.ReactionLimit,
			Width:         opts.Width,
			ImageURL:      c.api.ImageURL,
		}),
	}
	return loop.run(ctx, opts.In, redraw, bell)
}

type chatLoop struct {
	client   *Client
	session  *ws.Session
	engine   *core.Engine
	renderer *render.Renderer
	out      io.Writer
	clear    bool
	note     string
}

func (l *chatLoop) run(ctx context.Context, in io.Reader, redraw, bell <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	l.draw()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := l.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				l.note = err.Error()
			}
			if quit {
				return nil
			}
			l.draw()
		case <-redraw:
			l.draw()
		case <-bell:
			_, _ = io.WriteString(l.out, "\a")
		case <-l.session.Done():
			return errors.New("connection closed")
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *chatLoop) draw() {
	var b strings.Builder
	if l.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(l.renderer.View(l.engine.View(), l.engine.Scope().SessionID, l.engine.Reactions))
	if l.note != "" {
		b.WriteString("! ")
		b.WriteString(l.note)
		b.WriteByte('\n')
		l.note = ""
	}
	b.WriteString("> ")
	_, _ = io.WriteString(l.out, b.String())
}

// handle runs one input line. It reports whether the user asked to quit.
func (l *chatLoop) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		if err := l.session.Typing(ctx); err != nil {
			l.client.log.Debug().Err(err).Msg("typing notice not sent")
		}
		return false, l.send(ctx, core.Draft{Body: line, Kind: core.KindText})
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		l.note = chatHelp
		return false, nil
	case "/reply":
		target, body, err := l.target(rest)
		if err != nil {
			return false, err
		}
		return false, l.send(ctx, core.Draft{Body: body, Kind: core.KindReply, ReplyTo: &target})
	case "/react":
		target, emoji, err := l.target(rest)
		if err != nil {
			return false, err
		}
		return false, l.session.React(ctx, target.ID, emoji)
	case "/delete":
		target, _, err := l.target(rest)
		if err != nil {
			return false, err
		}
		return false, l.session.Delete(ctx, target.ID)
	case "/image":
		return false, l.sendImage(ctx, rest)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
}

// target resolves "N rest" to the N-th message as numbered on screen.
func (l *chatLoop) target(args string) (core.Message, string, error) {
	idx, rest, _ := strings.Cut(args, " ")
	n, err := strconv.Atoi(idx)
	if err != nil {
		return core.Message{}, "", fmt.Errorf("expected a message number, got %q", idx)
	}
	m, ok := l.engine.MessageAt(n - 1)
	if !ok {
		return core.Message{}, "", fmt.Errorf("no message %d", n)
	}
	return m, strings.TrimSpace(rest), nil
}

func (l *chatLoop) sendImage(ctx context.Context, args string) error {
	path, caption, _ := strings.Cut(args, " ")
	if path == "" {
		return errors.New("usage: /image path [caption]")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	ref, err := l.client.api.UploadImage(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	d := core.Draft{Body: ref, Kind: core.KindImage}
	if caption = strings.TrimSpace(caption); caption != "" {
		d.Kind = core.KindImageWithCaption
		d.Caption = caption
	}
	return l.send(ctx, d)
}

func (l *chatLoop) send(ctx context.Context, d core.Draft) error {
	if err := l.session.Send(ctx, d); err != nil {
		if errors.Is(err, core.ErrEmptyBody) || errors.Is(err, core.ErrNoReplyTarget) {
			return err
		}
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}
