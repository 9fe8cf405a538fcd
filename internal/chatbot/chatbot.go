package chatbot

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"Feedlytic/internal/backend"
	"Feedlytic/internal/config"
	"Feedlytic/internal/conversation"
	"Feedlytic/internal/session"
	"Feedlytic/internal/telemetry"
	"Feedlytic/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// ChatBot represents the main application
type ChatBot struct {
	config    config.Config
	db        *sql.DB
	logger    *slog.Logger
	client    *backend.Client
	store     session.Store
	view      *conversation.View
	sessionID string

	in      io.Reader
	out     io.Writer
	closers []func()
}

// NewChatBot creates a new ChatBot instance with logging, telemetry and local storage set up
func NewChatBot(ctx context.Context, cfg config.Config) (*ChatBot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	closers := []func(){func() { closeLog() }}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	opts := []backend.Option{backend.WithLogger(logger)}
	if cfg.Telemetry {
		providers, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		closers = append([]func(){func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down telemetry", "error", err)
			}
		}}, closers...)
		opts = append(opts, backend.WithTracer(providers.Tracer), backend.WithMeter(providers.Meter))
	}

	var (
		db    *sql.DB
		store session.Store
	)
	if cfg.Ephemeral {
		store = session.NewMemoryStore()
	} else {
		db, err = session.InitDB(cfg.DBPath)
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append([]func(){func() { db.Close() }}, closers...)
		store = session.NewSQLiteStore(db, cfg.SessionKey)
	}

	cb, err := New(ctx, cfg, backend.NewClient(cfg.BaseURL, opts...), store, logger)
	if err != nil {
		runClosers(closers)
		return nil, err
	}
	cb.db = db
	cb.closers = closers
	return cb, nil
}

// New creates a ChatBot over already constructed dependencies
func New(ctx context.Context, cfg config.Config, client *backend.Client, store session.Store, logger *slog.Logger) (*ChatBot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessionID, err := store.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session id: %w", err)
	}
	logger.Info("using session", "session_id", sessionID, "base_url", client.BaseURL())

	return &ChatBot{
		config:    cfg,
		logger:    logger,
		client:    client,
		store:     store,
		view:      conversation.New(),
		sessionID: sessionID,
		in:        os.Stdin,
		out:       os.Stdout,
	}, nil
}

// SessionID returns the active session identifier
func (cb *ChatBot) SessionID() string {
	return cb.sessionID
}

// History fetches the messages of the active session
func (cb *ChatBot) History(ctx context.Context) ([]session.Message, error) {
	return cb.client.FetchHistory(ctx, cb.sessionID)
}

// Reset drops the server-side state of the active session and switches to a new id.
// The id is rotated even if the server call fails.
func (cb *ChatBot) Reset(ctx context.Context) (string, error) {
	old := cb.sessionID
	if _, err := cb.client.ResetSession(ctx, old); err != nil {
		cb.logger.Error("failed to reset session", "session_id", old, "error", err)
	}

	id, err := cb.store.Reset(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to rotate session id: %w", err)
	}
	cb.sessionID = id
	cb.view.Reset()
	cb.logger.Info("session reset", "old_session_id", old, "session_id", id)
	return id, nil
}

// Close releases the database, telemetry exporters and log file
func (cb *ChatBot) Close() {
	runClosers(cb.closers)
	cb.closers = nil
}

func runClosers(closers []func()) {
	for _, c := range closers {
		c()
	}
}

// Run starts the chat: the terminal UI, or the line-mode REPL when configured
func (cb *ChatBot) Run(ctx context.Context) error {
	if cb.config.Plain {
		return cb.runREPL(ctx)
	}

	model := ui.New(ctx, cb.client, cb.store, cb.sessionID, ui.Options{
		Hints:        cb.config.LoaderHints(),
		HintInterval: cb.config.HintInterval,
		Markdown:     cb.config.Markdown,
	}, cb.logger)

	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	if m, ok := final.(ui.Model); ok {
		cb.sessionID = m.SessionID()
	}
	return nil
}

func (cb *ChatBot) runREPL(ctx context.Context) error {
	fmt.Fprintln(cb.out, "=== Feedlytic ===")
	fmt.Fprintln(cb.out, "Piping the World into Your Feed")
	fmt.Fprintf(cb.out, "Session: %s\n", cb.sessionID)
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	cb.loadHistory(ctx)

	scanner := bufio.NewScanner(cb.in)
	for {
		fmt.Fprint(cb.out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := scanner.Text()
		if strings.TrimSpace(input) == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(cb.out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		cb.sendMessage(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}

func (cb *ChatBot) loadHistory(ctx context.Context) {
	cb.view.BeginHistory()
	messages, err := cb.History(ctx)
	if err != nil {
		cb.logger.Warn("could not load history for this session", "session_id", cb.sessionID, "error", err)
	}
	cb.view.LoadHistory(messages, err)
	cb.printMessages(cb.view.Visible())
}

func (cb *ChatBot) printMessages(messages []session.Message) {
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			fmt.Fprintf(cb.out, "You: %s\n", msg.Text)
		default:
			fmt.Fprintf(cb.out, "Bot: %s\n\n", msg.Text)
		}
	}
}

// sendMessage streams the reply to input, printing increments as they arrive
func (cb *ChatBot) sendMessage(ctx context.Context, input string) {
	cb.view.SetInput(input)
	query, ok := cb.view.Submit()
	if !ok {
		return
	}

	fmt.Fprint(cb.out, "Bot: ")
	err := cb.client.Chat(ctx, cb.sessionID, query, func(text string) {
		cb.view.Increment(text)
		fmt.Fprint(cb.out, text)
	})
	cb.view.Settle(err)

	if err != nil {
		cb.logger.Error("streaming error", "session_id", cb.sessionID, "error", err)
		fmt.Fprintln(cb.out)
		fmt.Fprint(cb.out, conversation.FallbackMessage)
	}
	fmt.Fprint(cb.out, "\n\n")
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/reset", "/new-session":
		id, err := cb.Reset(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(cb.out, "Started new session:", id)
		return false, nil

	case "/history":
		cb.printMessages(cb.view.Visible())
		return false, nil

	case "/session":
		fmt.Fprintln(cb.out, "Session:", cb.sessionID)
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  /quit, /exit   - Exit the chat")
		fmt.Fprintln(cb.out, "  /reset         - Clear this conversation and start a new session")
		fmt.Fprintln(cb.out, "  /history       - Show the conversation so far")
		fmt.Fprintln(cb.out, "  /session       - Show the current session id")
		fmt.Fprintln(cb.out, "  /help          - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}
