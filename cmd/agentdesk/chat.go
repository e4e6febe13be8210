package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/BaSui01/agentdesk/agent/session"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 交互式对话命令
// =============================================================================

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	conversation := fs.String("conversation", session.DefaultConversation, "Conversation ID")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// 日志不能和对话输出混在一起
	if len(cfg.Log.OutputPaths) == 0 || (len(cfg.Log.OutputPaths) == 1 && cfg.Log.OutputPaths[0] == "stdout") {
		cfg.Log.OutputPaths = []string{"stderr"}
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start chat: %v\n", err)
		os.Exit(1)
	}
	if err := app.Watch(ctx); err != nil {
		logger.Warn("agent config watcher disabled", zap.Error(err))
	}

	repl := NewREPL(app.Manager, *conversation, os.Stdin, os.Stdout)
	runErr := repl.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Warn("chat shutdown error", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Chat ended with error: %v\n", runErr)
		os.Exit(1)
	}
}

// ChatBackend 是 REPL 需要的会话能力，由 *session.Manager 满足
type ChatBackend interface {
	ProcessTurn(ctx context.Context, id, text string) (session.Response, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	Clear(ctx context.Context, id string) error
}

var _ ChatBackend = (*session.Manager)(nil)

// REPL 逐行读取用户输入，斜杠开头的是本地命令
type REPL struct {
	backend      ChatBackend
	conversation string
	in           io.Reader
	out          io.Writer
}

// NewREPL 创建 REPL，conversation 为空时使用默认对话
func NewREPL(backend ChatBackend, conversation string, in io.Reader, out io.Writer) *REPL {
	if conversation == "" {
		conversation = session.DefaultConversation
	}
	return &REPL{backend: backend, conversation: conversation, in: in, out: out}
}

// Run 读取输入直到 /quit、EOF 或 ctx 结束
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintf(r.out, "AgentDesk chat (conversation %q). Commands: /history [n], /clear, /quit\n", r.conversation)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(r.out, "Goodbye.")
			return nil
		}
	}
}

// handle 处理一行输入，返回是否退出
func (r *REPL) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		resp, err := r.backend.ProcessTurn(ctx, r.conversation, line)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s: %s\n", resp.Author, resp.Content)
		return false, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		if err := r.backend.Clear(ctx, r.conversation); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "History cleared.")
		return false, nil
	case "/history":
		limit := 0
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 0 {
				return false, fmt.Errorf("usage: /history [n]")
			}
			limit = n
		}
		s, err := r.backend.Session(ctx, r.conversation)
		if err != nil {
			return false, err
		}
		r.printHistory(s.History(limit))
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s (try /history, /clear, /quit)", fields[0])
	}
}

func (r *REPL) printHistory(turns []types.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(r.out, "(no history)")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(r.out, "[%s] %s(%s): %s\n", t.Timestamp.Format(time.TimeOnly), t.Role, t.Author, t.Content)
	}
}
