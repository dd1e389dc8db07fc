package model

import (
	"time"

	"gorm.io/gorm"
)

type Question struct {
	ID     uint   `gorm:"primarykey" json:"id"`
	ExamID uint   `json:"exam_id" gorm:"not null;index:idx_exam_pos"`
	Prompt string `json:"prompt" gorm:"type:text;not null"`
	// Points is the question's worth. Stored values <= 0 are scored as 1.0.
	Points    float64        `json:"points" gorm:"not null;default:1"`
	Position  int            `json:"position" gorm:"not null;index:idx_exam_pos"`
	Choices   []Choice       `json:"choices,omitempty" gorm:"foreignKey:QuestionID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// EffectivePoints normalizes non-positive stored point values to 1.0.
func (q *Question) EffectivePoints() float64 {
	if q.Points <= 0 {
		return 1.0
	}
	return q.Points
}
