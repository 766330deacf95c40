package domain

const (
	EventNameQuizStarted        = "quiz.started"
	EventNameQuestionLoaded     = "quiz.question_loaded"
	EventNameAnswerSelected     = "quiz.answer_selected"
	EventNameQuizTicked         = "quiz.ticked"
	EventNameQuizFinished       = "quiz.finished"
	EventNameQuizReset          = "quiz.reset"
	EventNameLeaderboardUpdated = "leaderboard.updated"
	EventNameThemeChanged       = "theme.changed"
)

type EventQuizStarted struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
}

func (EventQuizStarted) Name() string { return EventNameQuizStarted }

type EventQuestionLoaded struct {
	SessionID string       `json:"session_id"`
	Question  QuestionView `json:"question"`
}

func (EventQuestionLoaded) Name() string { return EventNameQuestionLoaded }

type EventAnswerSelected struct {
	SessionID string `json:"session_id"`
	Number    int    `json:"number"`
	Option    int    `json:"option"`
}

func (EventAnswerSelected) Name() string { return EventNameAnswerSelected }

type EventQuizTicked struct {
	SessionID        string `json:"session_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

func (EventQuizTicked) Name() string { return EventNameQuizTicked }

type EventQuizFinished struct {
	Result Result `json:"result"`
}

func (EventQuizFinished) Name() string { return EventNameQuizFinished }

type EventQuizReset struct{}

func (EventQuizReset) Name() string { return EventNameQuizReset }

type EventLeaderboardUpdated struct {
	Entries []ScoreEntry `json:"entries"`
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

type EventThemeChanged struct {
	Theme Theme `json:"theme"`
}

func (EventThemeChanged) Name() string { return EventNameThemeChanged }
