package dto

import "time"

// AttemptDTO is the common attempt payload shape.
type AttemptDTO struct {
	ID         uint       `json:"id"`
	ExamID     uint       `json:"exam_id"`
	UserID     uint       `json:"user_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// RemainingSeconds is nil for unlimited attempts and 0 once expired.
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
}

// StartAttemptDTO is returned by start. Resumed marks an idempotent resume of
// an existing unexpired attempt rather than a fresh row.
type StartAttemptDTO struct {
	AttemptDTO
	Resumed bool `json:"resumed"`
}

type AnswerSelectionDTO struct {
	QuestionID uint `json:"question_id"`
	ChoiceID   uint `json:"choice_id"`
}

// AttemptDetailDTO is returned by get and per row from the attempt listing.
type AttemptDetailDTO struct {
	AttemptDTO
	AnsweredCount int64                `json:"answered_count"`
	Answers       []AnswerSelectionDTO `json:"answers"`
}

type EligibilityDTO struct {
	ExamID           uint        `json:"exam_id"`
	UserID           uint        `json:"user_id"`
	CanStart         bool        `json:"can_start"`
	HasActiveAttempt bool        `json:"has_active_attempt"`
	ActiveAttempt    *AttemptDTO `json:"active_attempt"`
	Action           string      `json:"action"`
}

// AnswerEntryDTO is one entry of a save-answers batch. choice_id and
// selected_choice_id are aliases; a missing or null value clears the stored
// selection for the question.
type AnswerEntryDTO struct {
	QuestionID       uint  `json:"question_id" binding:"required"`
	ChoiceID         *uint `json:"choice_id"`
	SelectedChoiceID *uint `json:"selected_choice_id"`
}

// Choice reconciles the choice_id/selected_choice_id aliases once at the
// boundary. Nil means clear.
func (a AnswerEntryDTO) Choice() *uint {
	if a.ChoiceID != nil {
		return a.ChoiceID
	}
	return a.SelectedChoiceID
}

type SaveAnswersDTO struct {
	Answers []AnswerEntryDTO `json:"answers" binding:"required,min=1,dive"`
}

type SaveAnswersResultDTO struct {
	AttemptID        uint                 `json:"attempt_id"`
	SavedCount       int                  `json:"saved_count"`
	AnsweredCount    int64                `json:"answered_count"`
	RemainingSeconds *int64               `json:"remaining_seconds,omitempty"`
	Answers          []AnswerSelectionDTO `json:"answers"`
}

// PaperQuestionDTO is a question as presented on the live paper, annotated
// with the caller's stored selection.
type PaperQuestionDTO struct {
	ID               uint                `json:"id"`
	Prompt           string              `json:"prompt"`
	Points           float64             `json:"points"`
	Position         int                 `json:"position"`
	SelectedChoiceID *uint               `json:"selected_choice_id"`
	Choices          []ChoiceResponseDTO `json:"choices"`
}

type PaperDTO struct {
	Attempt   AttemptDTO         `json:"attempt"`
	Questions []PaperQuestionDTO `json:"questions"`
}

// BreakdownEntryDTO is the per-question scoring detail. IsCorrect is
// redacted for non-authority callers.
type BreakdownEntryDTO struct {
	QuestionID       uint    `json:"question_id"`
	SelectedChoiceID *uint   `json:"selected_choice_id"`
	IsCorrect        *bool   `json:"is_correct,omitempty"`
	PointsAwarded    float64 `json:"points_awarded"`
	PointsPossible   float64 `json:"points_possible"`
}

type ReportDTO struct {
	AttemptID   uint                `json:"attempt_id"`
	Score       float64             `json:"score"`
	MaxScore    float64             `json:"max_score"`
	SubmittedAt *time.Time          `json:"submitted_at,omitempty"`
	Breakdown   []BreakdownEntryDTO `json:"breakdown"`
}

// AttemptSummaryDTO is one row of the attempt listing.
type AttemptSummaryDTO struct {
	AttemptDTO
	AnsweredCount int64 `json:"answered_count"`
}

type AttemptListDTO struct {
	ExamID   uint                `json:"exam_id"`
	UserID   *uint               `json:"user_id,omitempty"`
	Attempts []AttemptSummaryDTO `json:"attempts"`
}
