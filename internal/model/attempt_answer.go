package model

import "time"

// AttemptAnswer is the stored selection for one (attempt, question) key.
// The unique index makes every write a true replace; clearing a selection
// deletes the row.
type AttemptAnswer struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	AttemptID  uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	ChoiceID   uint      `json:"choice_id" gorm:"not null"`
	AnsweredAt time.Time `json:"answered_at" gorm:"not null"`
}
