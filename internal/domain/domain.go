package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionCount is the number of options every question carries.
const OptionCount = 4

// PointsPerQuestion is awarded for each correctly answered question.
const PointsPerQuestion = 2

// NotAnswered is shown in the review for a question left without a selection.
const NotAnswered = "Not answered"

// Question is a single multiple-choice trivia question. CorrectIndex points into Options.
type Question struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct"`
}

// User identifies the player of a quiz session.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// State is the screen the quiz controller is on.
type State string

const (
	StateWelcome      State = "welcome"
	StateInstructions State = "instructions"
	StateInProgress   State = "in_progress"
	StateFinished     State = "finished"
)

// FinishReason tells whether the player submitted or the countdown ran out.
type FinishReason string

const (
	FinishSubmitted FinishReason = "submitted"
	FinishTimeout   FinishReason = "timeout"
)

// QuestionView is the loaded question as the player sees it. Options are in display order
// and Selected is a display index.
type QuestionView struct {
	Number           int      `json:"number"`
	Total            int      `json:"total"`
	Text             string   `json:"question"`
	Options          []string `json:"options"`
	Selected         *int     `json:"selected"`
	Last             bool     `json:"last"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

// ScoreEntry is one row of the leaderboard.
type ScoreEntry struct {
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"date"`
}

// ReviewItem pairs the player's answer with the correct one for a question, in session order.
type ReviewItem struct {
	Number        int    `json:"number"`
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

// Result is the outcome of a finished session.
type Result struct {
	SessionID   string          `json:"session_id"`
	User        User            `json:"user"`
	Score       int             `json:"score"`
	MaxScore    int             `json:"max_score"`
	Percent     decimal.Decimal `json:"percent"`
	Celebrate   bool            `json:"celebrate"`
	Reason      FinishReason    `json:"reason"`
	FinishTime  time.Time       `json:"finish_time"`
	Review      []ReviewItem    `json:"review"`
	Leaderboard []ScoreEntry    `json:"leaderboard"`
}

// Snapshot is a read-only view of the quiz controller.
type Snapshot struct {
	State            State         `json:"state"`
	User             User          `json:"user"`
	SessionID        string        `json:"session_id,omitempty"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Question         *QuestionView `json:"question,omitempty"`
	Result           *Result       `json:"result,omitempty"`
}

// Theme is the persisted colour scheme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
