package dto

import "time"

// ChoiceCreateDTO is one answer option inside a question payload.
type ChoiceCreateDTO struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
	Position  int    `json:"position"`
}

// QuestionCreateDTO is used standalone (add question to exam) and nested
// inside ExamCreateDTO. Points <= 0 fall back to 1.0 at scoring time.
type QuestionCreateDTO struct {
	Prompt   string            `json:"prompt" binding:"required"`
	Points   float64           `json:"points"`
	Position int               `json:"position"`
	Choices  []ChoiceCreateDTO `json:"choices" binding:"required,min=2,dive"`
}

// ExamCreateDTO creates an exam, optionally with its full question set.
type ExamCreateDTO struct {
	Title           string              `json:"title" binding:"required"`
	Description     string              `json:"description,omitempty"`
	DurationSeconds int                 `json:"duration_seconds" binding:"min=0"`
	Questions       []QuestionCreateDTO `json:"questions" binding:"omitempty,dive"`
}

// ExamUpdateDTO updates exam metadata. Nil fields are left untouched.
type ExamUpdateDTO struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	DurationSeconds *int    `json:"duration_seconds" binding:"omitempty,min=0"`
	Status          *string `json:"status" binding:"omitempty,oneof=draft published"`
}

type ChoiceResponseDTO struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	// IsCorrect is present only for authority callers.
	IsCorrect *bool `json:"is_correct,omitempty"`
}

type QuestionResponseDTO struct {
	ID       uint                `json:"id"`
	ExamID   uint                `json:"exam_id"`
	Prompt   string              `json:"prompt"`
	Points   float64             `json:"points"`
	Position int                 `json:"position"`
	Choices  []ChoiceResponseDTO `json:"choices,omitempty"`
}

type ExamResponseDTO struct {
	ID              uint                  `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	DurationSeconds int                   `json:"duration_seconds"`
	Status          string                `json:"status"`
	Questions       []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type ExamSummaryDTO struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Status          string    `json:"status"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}
