package dto

type InvokeRequest struct {
	UserId         string `json:"user_id" validate:"required"`
	ConversationId string `json:"conversation_id" validate:"required"`
	UserInput      string `json:"user_input" validate:"required,max=8000"`
	LessonId       *int   `json:"lesson_id" validate:"omitempty,gte=0"`
	Preferences    string `json:"preferences" validate:"max=2000"`
}

type InvokeResponse struct {
	Result string `json:"result"`
}
