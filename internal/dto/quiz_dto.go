package dto

type StartQuizRequest struct {
	UserId string `json:"user_id" validate:"required"`
}

type AnswerQuizRequest struct {
	Answer string `json:"answer" validate:"required,max=2000"`
}

type QuizResponse struct {
	ConversationId  string `json:"conversation_id"`
	State           string `json:"state"`
	Total           int    `json:"total"`
	QuestionsAsked  int    `json:"questions_asked"`
	Score           int    `json:"score"`
	CurrentQuestion string `json:"current_question,omitempty"`
	LastFeedback    string `json:"last_feedback,omitempty"`
	Finished        bool   `json:"finished"`
}

type AnswerQuizResponse struct {
	Correct  bool         `json:"correct"`
	Feedback string       `json:"feedback"`
	Quiz     QuizResponse `json:"quiz"`
}
