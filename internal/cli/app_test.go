package cli_test

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviaquiz/internal/cli"
	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/kv"
	"github.com/victornm/triviaquiz/internal/leaderboard"
	"github.com/victornm/triviaquiz/internal/quiz"
	"github.com/victornm/triviaquiz/internal/theme"
)

func TestRun_PlayToTheEnd(t *testing.T) {
	ctx := context.Background()

	var in strings.Builder
	// Toggle the theme, begin, miss the name, register, start.
	in.WriteString("t\n\n")
	in.WriteString("\nnobody@example.com\n")
	in.WriteString("Alice\na@example.com\n\n")
	// Move on without a selection, then pick something that is not an option.
	in.WriteString("\nz\n")
	for range 10 {
		in.WriteString("A\n\n")
	}
	in.WriteString("q\n")

	c, store := makeConfig(t, nil)
	c.In = strings.NewReader(in.String())
	out := &syncBuffer{}
	c.Out = out

	require.NoError(t, cli.Run(ctx, c))

	s := out.String()
	assert.Contains(t, s, "No scores yet")
	assert.Contains(t, s, "Theme: dark")
	assert.Contains(t, s, "name is required")
	assert.Contains(t, s, "Answer 10 questions in 05:00.")
	assert.Contains(t, s, "Please select an option!")
	assert.Contains(t, s, "Invalid input. Please enter a letter A-D.")
	assert.Contains(t, s, "Question 10/10")
	assert.Contains(t, s, "Well done, Alice!")
	assert.Contains(t, s, "Your score: ")
	assert.Contains(t, s, "Leaderboard:")
	assert.Contains(t, s, "Bye!")
	assert.NotContains(t, s, "Time's up!")

	top := c.Leaderboard.TopN(ctx, 5)
	require.Len(t, top, 1)
	assert.Equal(t, "Alice", top[0].Name)
	assert.Zero(t, top[0].Score%domain.PointsPerQuestion)

	v, ok, err := store.Get(ctx, "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestRun_InputClosedOnWelcome(t *testing.T) {
	c, _ := makeConfig(t, nil)
	c.In = strings.NewReader("")
	out := &syncBuffer{}
	c.Out = out

	require.NoError(t, cli.Run(context.Background(), c))
	assert.Contains(t, out.String(), "Bye!")
}

func TestRun_Timeout(t *testing.T) {
	ctx := context.Background()
	ticks := make(chan time.Time)

	c, _ := makeConfig(t, func(qc *quiz.Config) {
		qc.Duration = 2 * time.Second
		qc.NewTickerFunc = func(time.Duration) quiz.Ticker { return fakeTicker{c: ticks} }
	})

	r, w := io.Pipe()
	c.In = r
	out := &syncBuffer{}
	c.Out = out

	done := make(chan error, 1)
	go func() { done <- cli.Run(ctx, c) }()

	_, err := io.WriteString(w, "\nBob\n\n\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Quiz.Snapshot(ctx).State == domain.StateInProgress
	}, 2*time.Second, 10*time.Millisecond)

	ticks <- time.Now()
	ticks <- time.Now()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Press Enter to play again")
	}, 2*time.Second, 10*time.Millisecond)

	s := out.String()
	assert.Contains(t, s, "Time's up! Quiz auto-submitted.")
	assert.Contains(t, s, "Well done, Bob!")
	assert.NotContains(t, s, "Great score!")
	assert.Contains(t, s, "Your score: 0/20")
	assert.Contains(t, s, domain.NotAnswered)

	_, err = io.WriteString(w, "q\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cli did not stop")
	}
}

func TestRun_TimeoutNoticedWithoutEvent(t *testing.T) {
	ctx := context.Background()
	ticks := make(chan time.Time)

	c, _ := makeConfig(t, func(qc *quiz.Config) {
		qc.Duration = time.Second
		qc.NewTickerFunc = func(time.Duration) quiz.Ticker { return fakeTicker{c: ticks} }
	})

	// The terminal listens on a bus the engine never publishes to, as if the finish event was dropped.
	detached := event.NewBus()
	t.Cleanup(detached.Stop)
	c.EventBus = detached
	c.PollInterval = 10 * time.Millisecond

	r, w := io.Pipe()
	c.In = r
	out := &syncBuffer{}
	c.Out = out

	done := make(chan error, 1)
	go func() { done <- cli.Run(ctx, c) }()

	_, err := io.WriteString(w, "\nCarol\n\n\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Quiz.Snapshot(ctx).State == domain.StateInProgress
	}, 2*time.Second, 10*time.Millisecond)

	ticks <- time.Now()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Press Enter to play again")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "Time's up! Quiz auto-submitted.")

	require.NoError(t, w.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cli did not stop")
	}
}

func makeConfig(t *testing.T, opt func(c *quiz.Config)) (cli.Config, *kv.Memory) {
	t.Helper()

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	store := kv.NewMemory()
	lb := leaderboard.NewService(leaderboard.Config{EventBus: eb, Store: store})
	th := theme.NewService(theme.Config{
		EventBus:    eb,
		Store:       store,
		PrefersDark: func() bool { return false },
	})

	qc := quiz.Config{
		EventBus:    eb,
		Leaderboard: lb,
		Rand:        rand.New(rand.NewPCG(3, 4)),
	}
	if opt != nil {
		opt(&qc)
	}
	e := quiz.NewEngine(qc)
	t.Cleanup(e.Close)

	return cli.Config{
		EventBus:    eb,
		Quiz:        e,
		Leaderboard: lb,
		Theme:       th,
		NoColor:     true,
	}, store
}

type fakeTicker struct {
	c chan time.Time
}

func (f fakeTicker) C() <-chan time.Time { return f.c }

func (f fakeTicker) Stop() {}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
