package quiz

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/score"
	"github.com/victornm/triviaquiz/internal/session"
)

const (
	DefaultDuration = 5 * time.Minute
	tickInterval    = time.Second
)

// Recorder stores a finished score and returns the ranked leaderboard.
type Recorder interface {
	Record(ctx context.Context, name string, score int) ([]domain.ScoreEntry, error)
}

type Config struct {
	Bank          []domain.Question
	Duration      time.Duration
	EventBus      *event.Bus
	Leaderboard   Recorder
	NewTickerFunc func(d time.Duration) Ticker
	Rand          *rand.Rand
	Now           func() time.Time
}

// Engine is the quiz controller: welcome -> instructions -> in progress -> finished.
// It owns at most one session at a time and is safe for concurrent use.
type Engine struct {
	bank      []domain.Question
	seconds   int
	eb        *event.Bus
	lb        Recorder
	newTicker func(d time.Duration) Ticker
	rand      *rand.Rand
	now       func() time.Time

	mu            sync.Mutex
	state         domain.State
	user          domain.User
	session       *session.Session
	result        *domain.Result
	stopCountdown func()
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		bank:      c.Bank,
		seconds:   int(c.Duration / time.Second),
		eb:        c.EventBus,
		lb:        c.Leaderboard,
		newTicker: c.NewTickerFunc,
		rand:      c.Rand,
		now:       c.Now,
		state:     domain.StateWelcome,
	}

	if len(e.bank) == 0 {
		e.bank = DefaultBank()
	}
	if e.seconds <= 0 {
		e.seconds = int(DefaultDuration / time.Second)
	}
	if e.newTicker == nil {
		e.newTicker = newStdTicker
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// Register stores the player and moves to the instructions screen.
func (e *Engine) Register(ctx context.Context, u domain.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StateWelcome && e.state != domain.StateInstructions {
		return errors.FailedPrecondition("cannot register while quiz is %s", e.state)
	}

	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Name == "" {
		return errors.InvalidArgument("name is required")
	}

	e.user = u
	e.state = domain.StateInstructions
	slog.InfoContext(ctx, "quiz: player registered", "name", u.Name)

	return nil
}

// Start begins a new session, dropping any session and countdown still running.
func (e *Engine) Start(ctx context.Context) (*domain.QuestionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == domain.StateWelcome {
		return nil, errors.FailedPrecondition("register before starting the quiz")
	}

	e.haltCountdown()

	ss, err := session.New(e.user, e.bank, e.seconds, e.rand, e.now())
	if err != nil {
		return nil, err
	}

	e.session = ss
	e.result = nil
	e.state = domain.StateInProgress

	slog.InfoContext(ctx, "quiz: session started", "session", ss.ID, "name", e.user.Name)
	e.publish(ctx, domain.EventQuizStarted{SessionID: ss.ID, User: e.user})

	v := ss.View()
	e.publish(ctx, domain.EventQuestionLoaded{SessionID: ss.ID, Question: v})

	e.startCountdown(ss.ID)

	return &v, nil
}

// Current returns the loaded question without reshuffling its options.
func (e *Engine) Current(_ context.Context) (*domain.QuestionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInProgress(); err != nil {
		return nil, err
	}

	v := e.session.View()
	return &v, nil
}

// SelectAnswer records the option at displayIndex, as shown in the current QuestionView,
// as the answer to the current question.
func (e *Engine) SelectAnswer(ctx context.Context, displayIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInProgress(); err != nil {
		return err
	}

	if _, err := e.session.Select(displayIndex); err != nil {
		return err
	}

	e.publish(ctx, domain.EventAnswerSelected{
		SessionID: e.session.ID,
		Number:    e.session.CurrentIndex + 1,
		Option:    displayIndex,
	})

	return nil
}

// Advance loads the next question. It fails with errors.ErrNoSelection when the current
// question is unanswered, and on the last question, which must be finished instead.
func (e *Engine) Advance(ctx context.Context) (*domain.QuestionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInProgress(); err != nil {
		return nil, err
	}

	if err := e.session.Advance(); err != nil {
		return nil, err
	}

	v := e.session.View()
	e.publish(ctx, domain.EventQuestionLoaded{SessionID: e.session.ID, Question: v})

	return &v, nil
}

// Tick counts the active session down by one second, finishing it when time runs out.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInProgress(); err != nil {
		return err
	}

	e.tickLocked(ctx)
	return nil
}

// Finish stops the countdown, scores the session and records it on the leaderboard.
func (e *Engine) Finish(ctx context.Context) (*domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInProgress(); err != nil {
		return nil, err
	}

	r := e.finishLocked(ctx, domain.FinishSubmitted)
	return &r, nil
}

// Result returns the outcome of the last finished session.
func (e *Engine) Result(_ context.Context) (*domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StateFinished || e.result == nil {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no finished quiz"))
	}

	r := *e.result
	return &r, nil
}

// Reset discards the session and returns to the welcome screen.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltCountdown()
	e.session = nil
	e.result = nil
	e.user = domain.User{}
	e.state = domain.StateWelcome

	e.publish(ctx, domain.EventQuizReset{})
}

// Close stops the countdown of an active session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltCountdown()
}

func (e *Engine) Snapshot(_ context.Context) domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := domain.Snapshot{
		State: e.state,
		User:  e.user,
	}

	if e.session != nil {
		snap.SessionID = e.session.ID
		snap.RemainingSeconds = e.session.RemainingSeconds
	}

	switch e.state {
	case domain.StateInProgress:
		v := e.session.View()
		snap.Question = &v
	case domain.StateFinished:
		r := *e.result
		snap.Result = &r
	}

	return snap
}

// Total is the number of questions in a session.
func (e *Engine) Total() int {
	return len(e.bank)
}

// Seconds is the countdown length of a session.
func (e *Engine) Seconds() int {
	return e.seconds
}

func (e *Engine) requireInProgress() error {
	if e.state != domain.StateInProgress {
		return errors.FailedPrecondition("quiz is not in progress: state=%s", e.state)
	}
	return nil
}

func (e *Engine) tickLocked(ctx context.Context) {
	expired := e.session.Tick()

	e.publish(ctx, domain.EventQuizTicked{
		SessionID:        e.session.ID,
		RemainingSeconds: e.session.RemainingSeconds,
	})

	if expired {
		slog.InfoContext(ctx, "quiz: time is up", "session", e.session.ID)
		e.finishLocked(ctx, domain.FinishTimeout)
	}
}

func (e *Engine) finishLocked(ctx context.Context, reason domain.FinishReason) domain.Result {
	e.haltCountdown()

	ss := e.session
	total, review := score.Compute(ss.Order, ss.Answers)
	maxScore := score.Max(len(ss.Order))

	r := domain.Result{
		SessionID:  ss.ID,
		User:       ss.User,
		Score:      total,
		MaxScore:   maxScore,
		Percent:    score.Percent(total, maxScore),
		Celebrate:  score.Celebrate(total, maxScore),
		Reason:     reason,
		FinishTime: e.now(),
		Review:     review,
	}

	if e.lb != nil {
		entries, err := e.lb.Record(ctx, ss.User.Name, total)
		if err != nil {
			slog.ErrorContext(ctx, "quiz: record score failed", "session", ss.ID, "error", err)
		}
		r.Leaderboard = entries
	}

	e.result = &r
	e.state = domain.StateFinished

	slog.InfoContext(ctx, "quiz: session finished",
		"session", ss.ID,
		"score", total,
		"reason", reason,
	)
	e.publish(ctx, domain.EventQuizFinished{Result: r})

	return r
}

func (e *Engine) startCountdown(sessionID string) {
	t := e.newTicker(tickInterval)
	done := make(chan struct{})

	var once sync.Once
	e.stopCountdown = func() {
		once.Do(func() {
			close(done)
			t.Stop()
		})
	}

	go func() {
		ctx := context.Background()
		for {
			select {
			case <-done:
				return
			case <-t.C():
				e.countdownTick(ctx, sessionID)
			}
		}
	}()
}

// countdownTick ignores ticks from a countdown whose session is no longer active.
func (e *Engine) countdownTick(ctx context.Context, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StateInProgress || e.session == nil || e.session.ID != sessionID {
		return
	}

	e.tickLocked(ctx)
}

func (e *Engine) haltCountdown() {
	if e.stopCountdown != nil {
		e.stopCountdown()
		e.stopCountdown = nil
	}
}

func (e *Engine) publish(ctx context.Context, ev event.Event) {
	if e.eb != nil {
		e.eb.Publish(ctx, ev)
	}
}
