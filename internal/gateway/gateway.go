// Package gateway streams model answers through an eino chat chain. Every
// call carries the same persona prompt followed by the conversation so far.
package gateway

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

//go:embed persona.md
var DefaultPersona string

// DefaultIdleTimeout bounds the wait for the first and each following chunk.
const DefaultIdleTimeout = 30 * time.Second

// Role is the speaker of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role Role
	Text string
}

// Options configure a Gateway.
type Options struct {
	Persona     string
	IdleTimeout time.Duration
	// MaxHistoryTurns caps the exchanges sent before the question. Zero
	// sends the whole conversation.
	MaxHistoryTurns int
}

// Gateway sends the persona and history to a chat model and exposes the
// reply as a stream of text deltas. It never retries.
type Gateway struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	persona  string
	idle     time.Duration
	maxTurns int
	logger   zerolog.Logger
}

// New compiles the persona template and chat model into a chain.
func New(ctx context.Context, chatModel model.BaseChatModel, opts Options, logger zerolog.Logger) (*Gateway, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	persona := strings.TrimSpace(opts.Persona)
	if persona == "" {
		persona = strings.TrimSpace(DefaultPersona)
	}
	idle := opts.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}

	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage("{persona}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(template).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error compiling answer chain: %w", err)
	}

	return &Gateway{
		chain:    chain,
		persona:  persona,
		idle:     idle,
		maxTurns: opts.MaxHistoryTurns,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// LoadPersona reads a persona prompt from disk, falling back to the built-in
// persona when path is empty.
func LoadPersona(path string) (string, error) {
	if path == "" {
		return DefaultPersona, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading persona file: %w", err)
	}
	return string(data), nil
}

// Persona returns the system prompt attached to every call.
func (g *Gateway) Persona() string {
	return g.persona
}

// StreamAnswer starts a completion for history, whose last entry must be the
// new user question. Cancelling ctx or closing the stream aborts the call.
func (g *Gateway) StreamAnswer(ctx context.Context, history []Message) (*Stream, error) {
	if len(history) == 0 || history[len(history)-1].Role != RoleUser {
		return nil, ErrNoQuestion
	}

	ctx, cancel := context.WithCancel(ctx)
	dog := startWatchdog(g.idle, cancel)

	vars := map[string]any{
		"persona": g.persona,
		"history": toSchema(trimTail(history, g.maxTurns)),
	}

	started := time.Now()
	upstream, err := g.chain.Stream(ctx, vars)
	if err != nil {
		dog.stop()
		cancel()
		gwErr := classify(err, dog.expired())
		g.logger.Warn().Err(err).Str("kind", gwErr.Kind.String()).Msg("model call failed")
		return nil, gwErr
	}

	sr, sw := schema.Pipe[string](16)
	go g.pump(upstream, sw, dog, cancel, started)

	return &Stream{reader: sr, cancel: cancel}, nil
}

// pump copies model chunks into the pipe until the model finishes, fails or
// the reader goes away.
func (g *Gateway) pump(upstream *schema.StreamReader[*schema.Message], sw *schema.StreamWriter[string], dog *watchdog, cancel context.CancelFunc, started time.Time) {
	defer cancel()
	defer dog.stop()
	defer upstream.Close()
	defer sw.Close()

	chunks := 0
	for {
		msg, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			g.logger.Debug().
				Int("chunks", chunks).
				Int64("latency_ms", time.Since(started).Milliseconds()).
				Msg("model stream finished")
			return
		}
		if err != nil {
			gwErr := classify(err, dog.expired())
			g.logger.Warn().Err(err).Str("kind", gwErr.Kind.String()).Int("chunks", chunks).Msg("model stream failed")
			sw.Send("", gwErr)
			return
		}
		if msg == nil || msg.Content == "" {
			dog.kick()
			continue
		}
		chunks++
		// a slow reader blocks Send; that is not the model going quiet
		dog.pause()
		if closed := sw.Send(msg.Content, nil); closed {
			g.logger.Debug().Int("chunks", chunks).Msg("model stream abandoned by reader")
			return
		}
		dog.kick()
	}
}

// trimTail keeps the question and the last maxTurns exchanges before it.
func trimTail(history []Message, maxTurns int) []Message {
	if maxTurns <= 0 || len(history) <= 2*maxTurns+1 {
		return history
	}
	return history[len(history)-(2*maxTurns+1):]
}

func toSchema(history []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Text, nil))
		default:
			out = append(out, schema.UserMessage(m.Text))
		}
	}
	return out
}

// Stream is a finite, non-restartable sequence of text deltas. Recv returns
// io.EOF at the end or an *Error on failure.
type Stream struct {
	reader *schema.StreamReader[string]
	cancel context.CancelFunc
	once   sync.Once
}

// NewStream wraps a reader. cancel, if non-nil, is called on Close.
func NewStream(reader *schema.StreamReader[string], cancel context.CancelFunc) *Stream {
	return &Stream{reader: reader, cancel: cancel}
}

// Recv returns the next delta.
func (s *Stream) Recv() (string, error) {
	return s.reader.Recv()
}

// Close abandons the stream and releases the upstream connection.
func (s *Stream) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.reader.Close()
	})
}

// watchdog cancels a call when no chunk arrives within the idle timeout.
type watchdog struct {
	timer *time.Timer
	d     time.Duration
	fired atomic.Bool
}

func startWatchdog(d time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{d: d}
	if d > 0 {
		w.timer = time.AfterFunc(d, func() {
			w.fired.Store(true)
			cancel()
		})
	}
	return w
}

func (w *watchdog) kick() {
	if w.timer != nil && !w.fired.Load() {
		w.timer.Reset(w.d)
	}
}

func (w *watchdog) pause() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) expired() bool {
	return w.fired.Load()
}
