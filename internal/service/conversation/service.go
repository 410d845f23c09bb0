// Package conversation runs one chat turn end to end: history, prompt,
// agent invocation and the recorded reply.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/agent"
	chatsvc "github.com/zhouzirui/claude-code-chat/backend/internal/service/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/prompt"
)

// Store is the part of the session store a turn touches.
type Store interface {
	GetOrCreateWithHistory(ctx context.Context, sessionID string) (chat.Session, []chat.Turn, error)
	AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error
}

// Agent runs the external process.
type Agent interface {
	Run(ctx context.Context, inv agent.Invocation) agent.Result
	Stream(ctx context.Context, inv agent.Invocation, pub agent.Publisher) agent.Result
}

// Config tunes prompt assembly.
type Config struct {
	ContextWindow int
	Language      string
}

// Reply is what a completed turn hands back to the transport.
type Reply struct {
	SessionID string
	Text      string
	Outcome   agent.Outcome
	Timestamp time.Time
}

// Service glues the session store to the agent.
type Service struct {
	store  Store
	agent  Agent
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

// NewService wires a conversation service.
func NewService(store Store, runner Agent, cfg Config, logger *log.Logger) *Service {
	if cfg.ContextWindow < 0 {
		cfg.ContextWindow = 0
	}
	return &Service{
		store:  store,
		agent:  runner,
		cfg:    cfg,
		logger: logger.WithPrefix("conversation"),
		now:    time.Now,
	}
}

// Send runs a print-mode turn and records both sides of it.
func (s *Service) Send(ctx context.Context, sessionID, message string) (Reply, error) {
	inv, err := s.begin(ctx, sessionID, message, false)
	if err != nil {
		return Reply{}, err
	}
	res := s.agent.Run(ctx, inv)
	return s.finish(ctx, inv, res)
}

// Stream runs a stream-json turn, forwarding events to pub as they arrive.
// ctx should outlive the client connection so the reply is still recorded.
func (s *Service) Stream(ctx context.Context, sessionID, message string, pub agent.Publisher) (Reply, error) {
	inv, err := s.begin(ctx, sessionID, message, true)
	if err != nil {
		return Reply{}, err
	}
	res := s.agent.Stream(ctx, inv, pub)
	return s.finish(ctx, inv, res)
}

// begin snapshots the history before the new message is appended, so the
// window never contains the message being sent.
func (s *Service) begin(ctx context.Context, sessionID, message string, streaming bool) (agent.Invocation, error) {
	id := chatsvc.ResolveID(sessionID)
	sess, history, err := s.store.GetOrCreateWithHistory(ctx, id)
	if err != nil {
		return agent.Invocation{}, fmt.Errorf("load session: %w", err)
	}

	text := prompt.Build(prompt.Input{
		Context:          prompt.Window(history, s.cfg.ContextWindow, streaming),
		Message:          message,
		WorkingDirectory: sess.WorkingDirectory,
		Markdown:         prompt.IsMarkdownRequest(message),
		Language:         s.cfg.Language,
	})

	if err := s.store.AppendTurn(ctx, id, chat.Turn{Role: chat.RoleUser, Text: message, Directory: sess.WorkingDirectory}); err != nil {
		return agent.Invocation{}, fmt.Errorf("record message: %w", err)
	}
	s.logger.Info("turn started", "session", id, "streaming", streaming, "dir", sess.WorkingDirectory, "history", len(history))

	return agent.Invocation{SessionID: id, Prompt: text, WorkingDirectory: sess.WorkingDirectory}, nil
}

func (s *Service) finish(ctx context.Context, inv agent.Invocation, res agent.Result) (Reply, error) {
	turn := chat.Turn{Role: chat.RoleAssistant, Text: res.Text, Directory: inv.WorkingDirectory}
	if err := s.store.AppendTurn(ctx, inv.SessionID, turn); err != nil {
		return Reply{}, fmt.Errorf("record reply: %w", err)
	}
	s.logger.Info("turn finished", "session", inv.SessionID, "outcome", res.Outcome, "elapsed", res.Duration.Round(time.Millisecond))

	return Reply{
		SessionID: inv.SessionID,
		Text:      res.Text,
		Outcome:   res.Outcome,
		Timestamp: s.now(),
	}, nil
}
