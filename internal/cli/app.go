package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/leaderboard"
	"github.com/victornm/triviaquiz/internal/quiz"
	"github.com/victornm/triviaquiz/internal/theme"
)

const (
	previewSize = 3
	boardSize   = 5
)

type Config struct {
	In  io.Reader
	Out io.Writer

	EventBus    *event.Bus
	Quiz        *quiz.Engine
	Leaderboard *leaderboard.Service
	Theme       *theme.Service

	// NoColor disables the ANSI accent colour of the theme.
	NoColor bool

	// PollInterval is how often a running quiz is checked for a finish the timeout event
	// did not report. Defaults to a second.
	PollInterval time.Duration
}

type app struct {
	c     Config
	out   io.Writer
	lines chan string

	// timeouts receives the id of a session finished by its countdown.
	timeouts chan string
}

// Run plays quizzes on the terminal until the input is closed or the player quits.
func Run(ctx context.Context, c Config) error {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}

	a := &app{
		c:        c,
		out:      c.Out,
		lines:    make(chan string),
		timeouts: make(chan string, 1),
	}

	unsubscribe := c.EventBus.Subscribe(domain.EventNameQuizFinished, func(_ context.Context, e event.Event) error {
		r := e.(domain.EventQuizFinished).Result
		if r.Reason != domain.FinishTimeout {
			return nil
		}
		select {
		case a.timeouts <- r.SessionID:
		default:
		}
		return nil
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.scan(ctx, c.In)

	for {
		err := a.play(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, errQuit) {
			fmt.Fprintln(a.out, "\nBye!")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var errQuit = fmt.Errorf("quit")

func (a *app) scan(ctx context.Context, in io.Reader) {
	defer close(a.lines)

	s := bufio.NewScanner(in)
	for s.Scan() {
		select {
		case a.lines <- strings.TrimSpace(s.Text()):
		case <-ctx.Done():
			return
		}
	}
	if err := s.Err(); err != nil {
		slog.ErrorContext(ctx, "cli: read input failed", "error", err)
	}
}

func (a *app) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-a.lines:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	}
}

// play runs one pass through welcome, instructions, questions and result.
func (a *app) play(ctx context.Context) error {
	a.c.Quiz.Reset(ctx)

	if err := a.welcome(ctx); err != nil {
		return err
	}

	if err := a.register(ctx); err != nil {
		return err
	}

	a.instructions()
	if _, err := a.readLine(ctx); err != nil {
		return err
	}

	v, err := a.c.Quiz.Start(ctx)
	if err != nil {
		return fmt.Errorf("start quiz: %w", err)
	}

	r, err := a.answer(ctx, v)
	if err != nil {
		return err
	}

	a.result(ctx, r)

	fmt.Fprintln(a.out, "Press Enter to play again, or q to quit.")
	l, err := a.readLine(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(l, "q") {
		return errQuit
	}

	return nil
}

func (a *app) welcome(ctx context.Context) error {
	for {
		a.title("Trivia Quiz")

		top := a.c.Leaderboard.TopN(ctx, previewSize)
		if len(top) == 0 {
			fmt.Fprintln(a.out, "No scores yet. Be the first!")
		} else {
			fmt.Fprintln(a.out, "Top scores:")
			a.board(top)
		}

		fmt.Fprintf(a.out, "\nTheme: %s\n", a.c.Theme.Current(ctx))
		fmt.Fprintln(a.out, "Press Enter to begin, t to toggle the theme, q to quit.")

		l, err := a.readLine(ctx)
		if err != nil {
			return err
		}

		switch strings.ToLower(l) {
		case "":
			return nil
		case "t":
			a.c.Theme.Toggle(ctx)
		case "q":
			return errQuit
		}
	}
}

func (a *app) register(ctx context.Context) error {
	for {
		fmt.Fprint(a.out, "Name: ")
		name, err := a.readLine(ctx)
		if err != nil {
			return err
		}

		fmt.Fprint(a.out, "Email: ")
		email, err := a.readLine(ctx)
		if err != nil {
			return err
		}

		err = a.c.Quiz.Register(ctx, domain.User{Name: name, Email: email})
		if err == nil {
			return nil
		}

		if errors.Convert(err).Code != errors.CodeInvalidArgument {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Fprintf(a.out, "%s\n", errors.Convert(err).Message)
	}
}

func (a *app) instructions() {
	a.title("Instructions")
	fmt.Fprintf(a.out, "Answer %d questions in %s.\n", a.c.Quiz.Total(), clock(a.c.Quiz.Seconds()))
	fmt.Fprintf(a.out, "Each correct answer is worth %d points.\n", domain.PointsPerQuestion)
	fmt.Fprintln(a.out, "Type a letter to pick an option, Enter to move on. The last Enter submits the quiz.")
	fmt.Fprintln(a.out, "Press Enter to start.")
}

// answer loops over the questions until the player submits or the countdown finishes the session.
func (a *app) answer(ctx context.Context, v *domain.QuestionView) (*domain.Result, error) {
	session := a.c.Quiz.Snapshot(ctx).SessionID

	poll := time.NewTicker(a.c.PollInterval)
	defer poll.Stop()

	for {
		a.question(v)

		l, r, err := a.await(ctx, session, poll.C)
		if err != nil {
			return nil, err
		}
		if r != nil {
			return r, nil
		}

		next, r, err := a.handle(ctx, v, l)
		if err != nil {
			if r := a.finished(ctx, session); r != nil {
				return r, nil
			}
			return nil, err
		}
		if r != nil {
			return r, nil
		}
		v = next
	}
}

// await blocks until the player enters a line or session finishes without them.
func (a *app) await(ctx context.Context, session string, poll <-chan time.Time) (string, *domain.Result, error) {
	for {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()

		case id := <-a.timeouts:
			if id == session {
				r, err := a.c.Quiz.Result(ctx)
				return "", r, err
			}

		case <-poll:
			if r := a.finished(ctx, session); r != nil {
				return "", r, nil
			}

		case l, ok := <-a.lines:
			if !ok {
				return "", nil, io.EOF
			}
			return l, nil, nil
		}
	}
}

// finished returns the result when session has already been finished, by its countdown or otherwise.
func (a *app) finished(ctx context.Context, session string) *domain.Result {
	snap := a.c.Quiz.Snapshot(ctx)
	if snap.State != domain.StateFinished || snap.SessionID != session {
		return nil
	}
	return snap.Result
}

// handle applies one line of input to the loaded question. It returns the question to show next,
// or the result once the quiz is submitted.
func (a *app) handle(ctx context.Context, v *domain.QuestionView, l string) (*domain.QuestionView, *domain.Result, error) {
	switch strings.ToUpper(l) {
	case "":
		if v.Last {
			r, err := a.c.Quiz.Finish(ctx)
			return nil, r, err
		}

		next, err := a.c.Quiz.Advance(ctx)
		if errors.Is(err, errors.ErrNoSelection) {
			fmt.Fprintln(a.out, "Please select an option!")
			return v, nil, nil
		}
		return next, nil, err

	case "T":
		a.c.Theme.Toggle(ctx)
		cur, err := a.c.Quiz.Current(ctx)
		return cur, nil, err
	}

	i, ok := optionIndex(l, len(v.Options))
	if !ok {
		fmt.Fprintf(a.out, "Invalid input. Please enter a letter A-%c.\n", optionLetter(len(v.Options)-1))
		return v, nil, nil
	}

	if err := a.c.Quiz.SelectAnswer(ctx, i); err != nil {
		return nil, nil, err
	}

	cur, err := a.c.Quiz.Current(ctx)
	return cur, nil, err
}

func (a *app) question(v *domain.QuestionView) {
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%s  Time left: %s\n",
		a.accent(fmt.Sprintf("Question %d/%d", v.Number, v.Total)), clock(v.RemainingSeconds))
	fmt.Fprintln(a.out, v.Text)

	for i, o := range v.Options {
		mark := " "
		if v.Selected != nil && *v.Selected == i {
			mark = "*"
		}
		fmt.Fprintf(a.out, " %s %c. %s\n", mark, optionLetter(i), o)
	}

	if v.Last {
		fmt.Fprint(a.out, "Your choice (Enter to submit): ")
	} else {
		fmt.Fprint(a.out, "Your choice (Enter for next): ")
	}
}

func (a *app) result(ctx context.Context, r *domain.Result) {
	fmt.Fprintln(a.out)
	if r.Reason == domain.FinishTimeout {
		fmt.Fprintln(a.out, "Time's up! Quiz auto-submitted.")
	}

	a.title("Result")
	fmt.Fprintf(a.out, "Well done, %s!\n", r.User.Name)
	if r.Celebrate {
		fmt.Fprintln(a.out, a.accent("*** Great score! ***"))
	}
	fmt.Fprintf(a.out, "Your score: %d/%d (%s%%)\n\n", r.Score, r.MaxScore, r.Percent.String())

	for _, it := range r.Review {
		verdict := "wrong"
		if it.Correct {
			verdict = "correct"
		}
		fmt.Fprintf(a.out, "%d. %s\n   Your answer: %s (%s)\n   Correct answer: %s\n",
			it.Number, it.Question, it.UserAnswer, verdict, it.CorrectAnswer)
	}

	board := r.Leaderboard
	if len(board) == 0 {
		board = a.c.Leaderboard.TopN(ctx, boardSize)
	}
	fmt.Fprintln(a.out, "\nLeaderboard:")
	a.board(board)
	fmt.Fprintln(a.out)
}

func (a *app) board(entries []domain.ScoreEntry) {
	for i, e := range entries {
		fmt.Fprintf(a.out, "%d. %-20s %2d  %s\n", i+1, e.Name, e.Score, e.Timestamp.Local().Format("2006-01-02"))
	}
}

func (a *app) title(s string) {
	fmt.Fprintf(a.out, "\n%s\n%s\n", a.accent(s), strings.Repeat("=", len(s)))
}

func (a *app) accent(s string) string {
	if a.c.NoColor {
		return s
	}

	code := "34" // blue on light backgrounds
	if a.c.Theme.Current(context.Background()) == domain.ThemeDark {
		code = "96"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func optionIndex(l string, n int) (int, bool) {
	if len(l) != 1 {
		return -1, false
	}

	i := int(strings.ToUpper(l)[0]) - 'A'
	if i < 0 || i >= n {
		return -1, false
	}
	return i, true
}

func optionLetter(i int) rune {
	return rune('A' + i)
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
