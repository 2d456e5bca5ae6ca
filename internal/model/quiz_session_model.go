package model

import "time"

type QuizSession struct {
	ConversationId  string    `gorm:"type:text;primaryKey"`
	UserId          string    `gorm:"type:text;not null;index"`
	State           string    `gorm:"type:varchar(20);not null"`
	Total           int       `gorm:"not null"`
	QuestionsAsked  int       `gorm:"not null;default:0"`
	Score           int       `gorm:"not null;default:0"`
	CurrentQuestion string    `gorm:"type:text"`
	LastFeedback    string    `gorm:"type:text"`
	Finished        bool      `gorm:"not null;default:false"`
	Version         int64     `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}
