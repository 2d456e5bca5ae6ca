package entity

import "time"

type QuizState string

const (
	QuizAsking         QuizState = "asking"
	QuizAwaitingAnswer QuizState = "awaiting_answer"
	QuizFinished       QuizState = "finished"
)

// QuizSession is the persisted state of a review quiz. There is at most one
// per conversation; a finished session may be replaced by a new one.
type QuizSession struct {
	ConversationId  string
	UserId          string
	State           QuizState
	Total           int
	QuestionsAsked  int
	Score           int
	CurrentQuestion string
	LastFeedback    string
	Finished        bool
	// Version is bumped by every save; a stale Version is rejected.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
