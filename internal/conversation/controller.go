// Package conversation runs one interview session: each question is answered
// from the conversation graph when possible and streamed from the model
// otherwise, and finished answers are recorded as turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"interview_agent/internal/gateway"
	"interview_agent/internal/resolver"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyQuestion rejects blank submissions. Nothing changes.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrTurnInFlight rejects a submission while another is being answered.
	ErrTurnInFlight = errors.New("a question is already being answered")
)

// DefaultTotalQuestions is the interview length used for progress.
const DefaultTotalQuestions = 5

// FollowUpPolicy picks the suggestions shown after a model answer.
type FollowUpPolicy string

const (
	// FollowUpsInitial offers the graph's entry-point questions again.
	FollowUpsInitial FollowUpPolicy = "initial"
	// FollowUpsRandomCategory offers one randomly chosen suggestion set.
	FollowUpsRandomCategory FollowUpPolicy = "random_category"
)

// Resolver answers questions from the graph.
type Resolver interface {
	Resolve(question string) resolver.Result
}

// Answerer streams model answers.
type Answerer interface {
	StreamAnswer(ctx context.Context, history []gateway.Message) (*gateway.Stream, error)
}

// Suggestions supplies follow-up questions that are not tied to a node.
type Suggestions interface {
	InitialQuestions() []string
	Categories() []string
	Category(name string) []string
}

// Options tune a Controller. Zero values pick defaults.
type Options struct {
	TotalQuestions int
	FollowUps      FollowUpPolicy
	// Rand drives FollowUpsRandomCategory.
	Rand   *rand.Rand
	Now    func() time.Time
	NewID  func() string
	Logger zerolog.Logger
}

// Controller owns the state of one session. All methods are safe for
// concurrent use; only one question is answered at a time.
type Controller struct {
	resolver    Resolver
	answerer    Answerer
	suggestions Suggestions
	opts        Options

	mu    sync.RWMutex
	state State
}

// NewController creates a session with no turns and the initial questions
// pending.
func NewController(res Resolver, ans Answerer, sug Suggestions, opts Options) *Controller {
	if opts.TotalQuestions <= 0 {
		opts.TotalQuestions = DefaultTotalQuestions
	}
	if opts.FollowUps == "" {
		opts.FollowUps = FollowUpsInitial
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newTurnID
	}

	return &Controller{
		resolver:    res,
		answerer:    ans,
		suggestions: sug,
		opts:        opts,
		state: State{
			Turns:            []Turn{},
			PendingFollowUps: sug.InitialQuestions(),
			Phase:            PhaseIdle,
		},
	}
}

func newTurnID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Submit answers one question. Blank text returns ErrEmptyQuestion and a
// submission during an unfinished turn returns ErrTurnInFlight; neither
// changes state. A model failure still finishes the turn with whatever text
// arrived, emits an EventError and returns the wrapped *gateway.Error.
func (c *Controller) Submit(ctx context.Context, text string, sink Sink) (Outcome, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Outcome{}, ErrEmptyQuestion
	}
	if sink == nil {
		sink = func(Event) {}
	}

	c.mu.Lock()
	if c.state.Phase != PhaseIdle {
		c.mu.Unlock()
		return Outcome{}, ErrTurnInFlight
	}
	c.state.Phase = PhaseResolving
	c.state.ActiveQuestion = question
	c.state.ActiveAnswer = ""
	c.state.Mode = ""
	history := c.historyLocked(question)
	c.mu.Unlock()

	res := c.resolver.Resolve(question)
	if res.Found {
		c.mu.Lock()
		c.state.Mode = ModeGraph
		c.state.ActiveAnswer = res.Answer
		c.state.PendingFollowUps = cloneStrings(res.FollowUps)
		c.state.Phase = PhaseAnswered
		c.mu.Unlock()

		c.opts.Logger.Debug().Str("node_id", res.NodeID).Msg("answered from graph")
		sink(Event{Type: EventStarted, Mode: ModeGraph})
		sink(Event{Type: EventDelta, Mode: ModeGraph, Text: res.Answer})
		return c.finish(sink, nil)
	}

	c.mu.Lock()
	c.state.Mode = ModeModel
	c.state.Phase = PhaseStreaming
	c.mu.Unlock()
	sink(Event{Type: EventStarted, Mode: ModeModel})

	started := c.opts.Now()
	streamErr := c.stream(ctx, history, sink)

	c.mu.Lock()
	c.state.PendingFollowUps = c.modelFollowUpsLocked()
	c.state.Phase = PhaseAnswered
	c.mu.Unlock()

	logEvent := c.opts.Logger.Debug()
	if streamErr != nil {
		logEvent = c.opts.Logger.Warn().Err(streamErr)
		sink(Event{Type: EventError, Mode: ModeModel, Err: streamErr})
	}
	logEvent.Dur("elapsed", c.opts.Now().Sub(started)).Msg("answered from model")

	return c.finish(sink, streamErr)
}

// stream appends each delta to the active answer as it arrives.
func (c *Controller) stream(ctx context.Context, history []gateway.Message, sink Sink) error {
	s, err := c.answerer.StreamAnswer(ctx, history)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		delta, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if delta == "" {
			continue
		}
		c.mu.Lock()
		c.state.ActiveAnswer += delta
		c.mu.Unlock()
		sink(Event{Type: EventDelta, Mode: ModeModel, Text: delta})
	}
}

// finish records the turn and returns the session to idle.
func (c *Controller) finish(sink Sink, streamErr error) (Outcome, error) {
	c.mu.Lock()
	out := Outcome{
		Question:  c.state.ActiveQuestion,
		Answer:    c.state.ActiveAnswer,
		Mode:      c.state.Mode,
		FollowUps: cloneStrings(c.state.PendingFollowUps),
	}
	if out.Answer != "" && !c.recordedLocked(out.Question, out.Answer) {
		turn := Turn{
			ID:        c.opts.NewID(),
			Question:  out.Question,
			Answer:    out.Answer,
			Mode:      out.Mode,
			CreatedAt: c.opts.Now(),
		}
		c.state.Turns = append(c.state.Turns, turn)
		out.Turn = &turn
	}
	c.state.Phase = PhaseIdle
	c.mu.Unlock()

	sink(Event{Type: EventFollowUps, Mode: out.Mode, FollowUps: cloneStrings(out.FollowUps)})
	sink(Event{Type: EventFinished, Mode: out.Mode, Turn: out.Turn})

	if streamErr != nil {
		return out, fmt.Errorf("stream answer: %w", streamErr)
	}
	return out, nil
}

func (c *Controller) recordedLocked(question, answer string) bool {
	for _, t := range c.state.Turns {
		if t.Question == question && t.Answer == answer {
			return true
		}
	}
	return false
}

// historyLocked converts recorded turns into alternating user and assistant
// messages and appends the new question.
func (c *Controller) historyLocked(question string) []gateway.Message {
	history := make([]gateway.Message, 0, 2*len(c.state.Turns)+1)
	for _, t := range c.state.Turns {
		history = append(history,
			gateway.Message{Role: gateway.RoleUser, Text: t.Question},
			gateway.Message{Role: gateway.RoleAssistant, Text: t.Answer},
		)
	}
	return append(history, gateway.Message{Role: gateway.RoleUser, Text: question})
}

func (c *Controller) modelFollowUpsLocked() []string {
	if c.opts.FollowUps == FollowUpsRandomCategory {
		if names := c.suggestions.Categories(); len(names) > 0 {
			return c.suggestions.Category(names[c.opts.Rand.IntN(len(names))])
		}
	}
	return c.suggestions.InitialQuestions()
}

// State returns a copy of the session. It may be called while a question is
// streaming.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Turns = cloneTurns(c.state.Turns)
	s.PendingFollowUps = cloneStrings(c.state.PendingFollowUps)
	return s
}

// Progress counts recorded turns against the interview length.
func (c *Controller) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	current := len(c.state.Turns)
	return Progress{
		Current:  current,
		Total:    c.opts.TotalQuestions,
		Complete: current >= c.opts.TotalQuestions,
	}
}

// Snapshot returns the persistent part of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Turns:            cloneTurns(c.state.Turns),
		PendingFollowUps: cloneStrings(c.state.PendingFollowUps),
	}
}

// Restore replaces the session's turns and pending follow-ups. It fails
// while a question is in flight.
func (c *Controller) Restore(snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseIdle {
		return ErrTurnInFlight
	}
	c.state.Turns = cloneTurns(snap.Turns)
	if snap.PendingFollowUps != nil {
		c.state.PendingFollowUps = cloneStrings(snap.PendingFollowUps)
	}
	c.state.ActiveQuestion = ""
	c.state.ActiveAnswer = ""
	c.state.Mode = ""
	return nil
}
