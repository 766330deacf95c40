package session

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
)

// Session is the state of one quiz run. It is not safe for concurrent use; the quiz engine
// owns it and serialises access.
type Session struct {
	ID               string
	User             domain.User
	Order            []domain.Question
	Answers          []*int
	CurrentIndex     int
	RemainingSeconds int
	StartTime        time.Time

	// display maps a display position of the loaded question to its canonical option index.
	display []int
	rand    *rand.Rand
}

// New builds a fresh session over a shuffled copy of bank and loads the first question.
func New(user domain.User, bank []domain.Question, seconds int, r *rand.Rand, now time.Time) (*Session, error) {
	if len(bank) == 0 {
		return nil, errors.InvalidArgument("question bank is empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	order := slices.Clone(bank)
	Shuffle(r, order)

	s := &Session{
		ID:               id.String(),
		User:             user,
		Order:            order,
		Answers:          make([]*int, len(order)),
		RemainingSeconds: seconds,
		StartTime:        now,
		rand:             r,
	}
	s.Load()

	return s, nil
}

// Shuffle permutes s in place with the Fisher-Yates algorithm.
func Shuffle[T any](r *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Load picks a new display order for the current question's options.
func (s *Session) Load() {
	q := s.Order[s.CurrentIndex]

	s.display = make([]int, len(q.Options))
	for i := range s.display {
		s.display[i] = i
	}
	Shuffle(s.rand, s.display)
}

// View renders the current question in display order.
func (s *Session) View() domain.QuestionView {
	q := s.Order[s.CurrentIndex]

	v := domain.QuestionView{
		Number:           s.CurrentIndex + 1,
		Total:            len(s.Order),
		Text:             q.Text,
		Options:          make([]string, 0, len(s.display)),
		Last:             s.Last(),
		RemainingSeconds: s.RemainingSeconds,
	}

	for pos, canonical := range s.display {
		v.Options = append(v.Options, q.Options[canonical])
		if a := s.Answers[s.CurrentIndex]; a != nil && *a == canonical {
			selected := pos
			v.Selected = &selected
		}
	}

	return v
}

// Select stores the canonical option behind displayIndex as the answer to the current
// question, replacing any earlier choice.
func (s *Session) Select(displayIndex int) (int, error) {
	if displayIndex < 0 || displayIndex >= len(s.display) {
		return 0, errors.InvalidArgument("option out of range: option=%d, options=%d", displayIndex, len(s.display))
	}

	canonical := s.display[displayIndex]
	s.Answers[s.CurrentIndex] = &canonical

	return canonical, nil
}

// Advance moves to the next question. The current question must be answered and must not
// be the last one.
func (s *Session) Advance() error {
	if s.Answers[s.CurrentIndex] == nil {
		return errors.ErrNoSelection
	}
	if s.Last() {
		return errors.FailedPrecondition("last question reached, submit the quiz instead")
	}

	s.CurrentIndex++
	s.Load()

	return nil
}

func (s *Session) Last() bool {
	return s.CurrentIndex == len(s.Order)-1
}

// Tick counts one second down and reports whether time is up.
func (s *Session) Tick() bool {
	if s.RemainingSeconds > 0 {
		s.RemainingSeconds--
	}
	return s.RemainingSeconds <= 0
}
