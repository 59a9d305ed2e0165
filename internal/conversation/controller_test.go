package conversation

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"interview_agent/internal/gateway"
	"interview_agent/internal/knowledge"
	"interview_agent/internal/resolver"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAnswerer streams canned tokens. When release is set, it waits for the
// channel to close before finishing the stream.
type stubAnswerer struct {
	tokens   []string
	failAt   error
	startErr error
	release  chan struct{}
	started  chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	history []gateway.Message
}

func (s *stubAnswerer) StreamAnswer(ctx context.Context, history []gateway.Message) (*gateway.Stream, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}

	sr, sw := schema.Pipe[string](len(s.tokens) + 1)
	go func() {
		defer sw.Close()
		for _, tok := range s.tokens {
			sw.Send(tok, nil)
		}
		if s.started != nil {
			close(s.started)
		}
		if s.release != nil {
			<-s.release
		}
		if s.failAt != nil {
			sw.Send("", s.failAt)
		}
	}()
	return gateway.NewStream(sr, nil), nil
}

func (s *stubAnswerer) lastHistory() []gateway.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

func newTestController(t *testing.T, ans Answerer, opts Options) *Controller {
	t.Helper()
	store, err := knowledge.Default()
	require.NoError(t, err)
	seq := 0
	opts.NewID = func() string {
		seq++
		return "turn-" + string(rune('0'+seq))
	}
	opts.Now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return NewController(resolver.New(store), ans, store, opts)
}

func collect(events *[]Event) Sink {
	return func(e Event) { *events = append(*events, e) }
}

func TestSubmitGraphQuestion(t *testing.T) {
	ans := &stubAnswerer{}
	c := newTestController(t, ans, Options{})

	var events []Event
	out, err := c.Submit(context.Background(), "  tell me about YOURSELF ", collect(&events))
	require.NoError(t, err)

	assert.Equal(t, ModeGraph, out.Mode)
	assert.Contains(t, out.Answer, "came to software from teaching PE")
	assert.Equal(t, []string{
		"What's your experience with React?",
		"What was the transition from teaching to software like?",
		"How does your philosophy background help you as a developer?",
	}, out.FollowUps)
	require.NotNil(t, out.Turn)
	assert.Equal(t, "tell me about YOURSELF", out.Turn.Question)
	assert.Zero(t, ans.calls.Load(), "graph answers must not reach the model")

	state := c.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Len(t, state.Turns, 1)
	assert.Equal(t, out.FollowUps, state.PendingFollowUps)

	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventStarted, EventDelta, EventFollowUps, EventFinished}, types)
}

func TestSubmitSameGraphQuestionTwiceRecordsOneTurn(t *testing.T) {
	c := newTestController(t, &stubAnswerer{}, Options{})

	first, err := c.Submit(context.Background(), "Why should we hire you?", nil)
	require.NoError(t, err)
	assert.NotNil(t, first.Turn)

	second, err := c.Submit(context.Background(), "Why should we hire you?", nil)
	require.NoError(t, err)
	assert.Nil(t, second.Turn)
	assert.Equal(t, first.Answer, second.Answer)

	assert.Len(t, c.State().Turns, 1)
}

func TestSubmitModelFallbackAccumulatesTokens(t *testing.T) {
	ans := &stubAnswerer{tokens: []string{"Hel", "lo"}}
	c := newTestController(t, ans, Options{})

	var deltas []string
	out, err := c.Submit(context.Background(), "What is your favourite editor?", func(e Event) {
		if e.Type == EventDelta {
			deltas = append(deltas, e.Text)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", out.Answer)
	assert.Equal(t, ModeModel, out.Mode)

	state := c.State()
	assert.Equal(t, "Hello", state.ActiveAnswer)
	require.Len(t, state.Turns, 1)
	assert.Equal(t, "Hello", state.Turns[0].Answer)
	assert.Equal(t, ModeModel, state.Turns[0].Mode)

	store, _ := knowledge.Default()
	assert.Equal(t, store.InitialQuestions(), state.PendingFollowUps)
}

func TestSubmitSendsPriorTurnsAsHistory(t *testing.T) {
	ans := &stubAnswerer{tokens: []string{"Vim."}}
	c := newTestController(t, ans, Options{})

	_, err := c.Submit(context.Background(), "Tell me about yourself", nil)
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "Favourite editor?", nil)
	require.NoError(t, err)

	history := ans.lastHistory()
	require.Len(t, history, 3)
	assert.Equal(t, gateway.RoleUser, history[0].Role)
	assert.Equal(t, "Tell me about yourself", history[0].Text)
	assert.Equal(t, gateway.RoleAssistant, history[1].Role)
	assert.Equal(t, gateway.Message{Role: gateway.RoleUser, Text: "Favourite editor?"}, history[2])
}

func TestSubmitRejectsBlankQuestion(t *testing.T) {
	ans := &stubAnswerer{}
	c := newTestController(t, ans, Options{})
	before := c.State()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), text, nil)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
	assert.Equal(t, before, c.State())
	assert.Zero(t, ans.calls.Load())
}

func TestSubmitWhileStreamingIsNoOp(t *testing.T) {
	ans := &stubAnswerer{
		tokens:  []string{"thinking"},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	c := newTestController(t, ans, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "Something the graph does not know", nil)
		done <- err
	}()

	<-ans.started
	require.Eventually(t, func() bool {
		return c.State().ActiveAnswer == "thinking"
	}, time.Second, 5*time.Millisecond)

	during := c.State()
	assert.Equal(t, PhaseStreaming, during.Phase)

	_, err := c.Submit(context.Background(), "Why should we hire you?", nil)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Equal(t, during, c.State())

	close(ans.release)
	require.NoError(t, <-done)
	assert.Len(t, c.State().Turns, 1)
	assert.Equal(t, int32(1), ans.calls.Load())
}

func TestSubmitNetworkFailureKeepsSessionUsable(t *testing.T) {
	ans := &stubAnswerer{failAt: &gateway.Error{Kind: gateway.KindNetworkFailure, Err: errors.New("connection refused")}}
	c := newTestController(t, ans, Options{})

	var gotErr error
	out, err := c.Submit(context.Background(), "Unknown question", func(e Event) {
		if e.Type == EventError {
			gotErr = e.Err
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrNetworkFailure)
	assert.ErrorIs(t, gotErr, gateway.ErrNetworkFailure)
	assert.Empty(t, out.Answer)
	assert.Nil(t, out.Turn)

	state := c.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.Turns)

	next, err := c.Submit(context.Background(), "What keeps you motivated?", nil)
	require.NoError(t, err)
	assert.NotNil(t, next.Turn)
}

func TestSubmitPartialAnswerIsRecordedOnFailure(t *testing.T) {
	ans := &stubAnswerer{
		tokens: []string{"I think "},
		failAt: &gateway.Error{Kind: gateway.KindTimeout},
	}
	c := newTestController(t, ans, Options{})

	out, err := c.Submit(context.Background(), "Unknown question", nil)
	assert.ErrorIs(t, err, gateway.ErrTimeout)
	assert.Equal(t, "I think ", out.Answer)
	require.NotNil(t, out.Turn)
	assert.Len(t, c.State().Turns, 1)
}

func TestSubmitGatewayStartFailure(t *testing.T) {
	ans := &stubAnswerer{startErr: &gateway.Error{Kind: gateway.KindProviderRejected}}
	c := newTestController(t, ans, Options{})

	_, err := c.Submit(context.Background(), "Unknown question", nil)
	assert.ErrorIs(t, err, gateway.ErrProviderRejected)
	assert.Equal(t, PhaseIdle, c.State().Phase)
}

func TestRandomCategoryFollowUps(t *testing.T) {
	store, err := knowledge.Default()
	require.NoError(t, err)

	ans := &stubAnswerer{tokens: []string{"answer"}}
	c := newTestController(t, ans, Options{
		FollowUps: FollowUpsRandomCategory,
		Rand:      rand.New(rand.NewPCG(7, 7)),
	})

	out, err := c.Submit(context.Background(), "Unknown question", nil)
	require.NoError(t, err)

	var matched bool
	for _, name := range store.Categories() {
		if assert.ObjectsAreEqual(store.Category(name), out.FollowUps) {
			matched = true
		}
	}
	assert.True(t, matched, "follow-ups %v should be one of the categories", out.FollowUps)
}

func TestProgress(t *testing.T) {
	c := newTestController(t, &stubAnswerer{}, Options{TotalQuestions: 2})

	assert.Equal(t, Progress{Current: 0, Total: 2}, c.Progress())

	_, err := c.Submit(context.Background(), "Tell me about yourself", nil)
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "Why should we hire you?", nil)
	require.NoError(t, err)

	assert.Equal(t, Progress{Current: 2, Total: 2, Complete: true}, c.Progress())
}

func TestSnapshotRestore(t *testing.T) {
	c := newTestController(t, &stubAnswerer{}, Options{})
	_, err := c.Submit(context.Background(), "Tell me about yourself", nil)
	require.NoError(t, err)

	snap := c.Snapshot()

	other := newTestController(t, &stubAnswerer{}, Options{})
	require.NoError(t, other.Restore(snap))
	assert.Equal(t, snap.Turns, other.State().Turns)
	assert.Equal(t, snap.PendingFollowUps, other.State().PendingFollowUps)

	// restored turns still suppress duplicates
	out, err := other.Submit(context.Background(), "Tell me about yourself", nil)
	require.NoError(t, err)
	assert.Nil(t, out.Turn)
}

func TestStateIsACopy(t *testing.T) {
	c := newTestController(t, &stubAnswerer{}, Options{})
	_, err := c.Submit(context.Background(), "Tell me about yourself", nil)
	require.NoError(t, err)

	state := c.State()
	state.Turns[0].Answer = "mutated"
	state.PendingFollowUps[0] = "mutated"

	assert.NotEqual(t, "mutated", c.State().Turns[0].Answer)
	assert.NotEqual(t, "mutated", c.State().PendingFollowUps[0])
}
