// Package quiz runs review quizzes over a learner's troubled topics. The
// session moves asking -> awaiting_answer -> asking ... -> finished and is
// persisted after every step.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/llm"
	tutorevents "ai-tutor-be/pkg/tutor/events"
	"ai-tutor-be/pkg/tutor/prompt"
	"ai-tutor-be/pkg/tutor/response"
	"ai-tutor-be/pkg/tutor/structured"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

const (
	topicLimit      = 5
	topicQuery      = "topics the learner found difficult"
	ungradedMessage = "I could not check that answer automatically, so it was not counted. Let's keep going."
)

var transitions = map[entity.QuizState][]entity.QuizState{
	entity.QuizAsking:         {entity.QuizAwaitingAnswer},
	entity.QuizAwaitingAnswer: {entity.QuizAsking, entity.QuizFinished},
	entity.QuizFinished:       {},
}

// CanTransition reports whether a session may move from one state to
// another.
func CanTransition(from, to entity.QuizState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TopicSource interface {
	Troubled(ctx context.Context, userID, query string, limit int) ([]string, error)
}

type ReferenceSource interface {
	Retrieve(ctx context.Context, query string, lessonID *int) []string
}

// Grade is the grader's verdict on one answer.
type Grade struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
	// Fallback is set when the grader output was unusable.
	Fallback bool `json:"-"`
}

type Engine struct {
	sessions   contract.QuizSessionRepository
	topics     TopicSource
	references ReferenceSource
	llm        llm.LLMProvider
	length     int
	events     tutorevents.Publisher
	metrics    *observability.Metrics
	logger     logger.ILogger
}

func NewEngine(
	sessions contract.QuizSessionRepository,
	topics TopicSource,
	references ReferenceSource,
	provider llm.LLMProvider,
	length int,
	events tutorevents.Publisher,
	metrics *observability.Metrics,
	log logger.ILogger,
) *Engine {
	if length <= 0 {
		length = 5
	}
	return &Engine{
		sessions:   sessions,
		topics:     topics,
		references: references,
		llm:        provider,
		length:     length,
		events:     events,
		metrics:    metrics,
		logger:     log,
	}
}

func (e *Engine) Get(ctx context.Context, conversationID string) (*entity.QuizSession, error) {
	return e.sessions.Get(ctx, conversationID)
}

// Start opens a new quiz for the conversation. An unfinished quiz blocks a
// new one.
func (e *Engine) Start(ctx context.Context, userID, conversationID string) (*entity.QuizSession, error) {
	current, err := e.sessions.Get(ctx, conversationID)
	switch {
	case err == nil && !current.Finished:
		return nil, fmt.Errorf("%w: quiz already in state %s", tutorerr.ErrInvalidTransition, current.State)
	case err != nil && !errors.Is(err, tutorerr.ErrQuizNotFound):
		return nil, err
	}

	session := &entity.QuizSession{
		ConversationId: conversationID,
		UserId:         userID,
		State:          entity.QuizAsking,
		Total:          e.length,
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	e.metrics.CountQuizTransition(string(entity.QuizAsking))
	e.logger.Info("TUTOR", "Quiz started", map[string]interface{}{
		"user_id":         userID,
		"conversation_id": conversationID,
		"total":           session.Total,
	})
	return session, nil
}

// NextQuestion generates the next question from the learner's troubled
// topics and waits for an answer.
func (e *Engine) NextQuestion(ctx context.Context, conversationID string) (*entity.QuizSession, error) {
	session, err := e.sessions.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(session.State, entity.QuizAwaitingAnswer) {
		return nil, fmt.Errorf("%w: cannot ask a question in state %s", tutorerr.ErrInvalidTransition, session.State)
	}

	topics, err := e.topics.Troubled(ctx, session.UserId, topicQuery, topicLimit)
	if err != nil {
		e.logger.Warn("TUTOR", "Quiz topic lookup failed, asking a general question", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		topics = nil
	}
	var references []string
	if len(topics) > 0 {
		references = e.references.Retrieve(ctx, strings.Join(topics, "\n"), nil)
	}

	raw, err := e.llm.Generate(ctx, prompt.BuildQuizQuestionPrompt(topics, references, session.QuestionsAsked, session.Total))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tutorerr.ErrGeneration, err)
	}
	question := response.NormalizeOutput(raw)
	if question == "" {
		return nil, fmt.Errorf("%w: empty quiz question", tutorerr.ErrGeneration)
	}

	session.State = entity.QuizAwaitingAnswer
	session.CurrentQuestion = question
	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	e.metrics.CountQuizTransition(string(entity.QuizAwaitingAnswer))
	return session, nil
}

// Answer grades the learner's answer to the current question. After the
// last question the session is finished and quiz.finished is published.
func (e *Engine) Answer(ctx context.Context, conversationID, answer string) (*Grade, *entity.QuizSession, error) {
	session, err := e.sessions.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if session.State != entity.QuizAwaitingAnswer {
		return nil, nil, fmt.Errorf("%w: no question is waiting for an answer (state %s)", tutorerr.ErrInvalidTransition, session.State)
	}

	grade := e.grade(ctx, session.CurrentQuestion, answer)

	session.QuestionsAsked++
	if grade.Correct {
		session.Score++
	}
	session.LastFeedback = grade.Feedback
	session.CurrentQuestion = ""
	session.State = entity.QuizAsking
	if session.QuestionsAsked >= session.Total {
		session.State = entity.QuizFinished
		session.Finished = true
	}

	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	e.metrics.CountQuizTransition(string(session.State))

	if session.Finished {
		e.logger.Info("TUTOR", "Quiz finished", map[string]interface{}{
			"user_id":         session.UserId,
			"conversation_id": conversationID,
			"score":           session.Score,
			"total":           session.Total,
		})
		if e.events != nil {
			e.events.PublishQuizFinished(ctx, session.UserId, conversationID, session.Score, session.Total)
		}
	}
	return grade, session, nil
}

func (e *Engine) grade(ctx context.Context, question, answer string) *Grade {
	fallback := func() Grade {
		return Grade{Correct: false, Feedback: ungradedMessage, Fallback: true}
	}

	raw, err := e.llm.Generate(ctx, prompt.BuildGradingPrompt(question, answer),
		llm.WithJSONFormat(), llm.WithTemperature(0))
	var res structured.Result[Grade]
	if err != nil {
		res = structured.Result[Grade]{Kind: structured.Fallback, Value: fallback(), Err: err}
	} else {
		res = structured.Parse(raw, func(g *Grade) error {
			return structured.RequireKeys(raw, "correct", "feedback")
		}, fallback)
	}

	if res.IsFallback() {
		e.logger.Warn("TUTOR", "Quiz grading failed, answer not counted", map[string]interface{}{
			"error": res.Err.Error(),
		})
	}
	g := res.Value
	return &g
}
