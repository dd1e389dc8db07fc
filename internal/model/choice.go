package model

import (
	"time"

	"gorm.io/gorm"
)

type Choice struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	QuestionID uint   `json:"question_id" gorm:"not null;index:idx_question_pos"`
	Text       string `json:"text" gorm:"type:text;not null"`
	// IsCorrect is never serialized to non-authority callers; the DTO layer
	// decides whether to expose it.
	IsCorrect bool           `json:"is_correct"`
	Position  int            `json:"position" gorm:"not null;index:idx_question_pos"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
