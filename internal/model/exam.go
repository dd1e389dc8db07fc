package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ExamStatusDraft     = "draft"
	ExamStatusPublished = "published"
)

type Exam struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description,omitempty"`
	// DurationSeconds is the attempt time limit. Zero means unlimited.
	DurationSeconds int            `json:"duration_seconds" gorm:"not null;default:0"`
	Status          string         `json:"status" gorm:"not null;default:'draft';index"`
	CreatedBy       uint           `json:"created_by" gorm:"index"`
	Questions       []Question     `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *Exam) IsPublished() bool {
	return e.Status == ExamStatusPublished
}
