package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusSubmitted  = "submitted"
	AttemptStatusExpired    = "expired"
)

// Attempt is one user's single timed pass at an exam. Status only moves
// forward: in_progress -> submitted | expired, both terminal.
type Attempt struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ExamID    uint      `json:"exam_id" gorm:"not null;index:idx_exam_user"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_exam_user"`
	Status    string    `json:"status" gorm:"not null;default:'in_progress';index"`
	StartedAt time.Time `json:"started_at" gorm:"not null"`
	// ExpiresAt is derived once at creation from the exam duration.
	// Nil means the attempt never auto-expires.
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	MaxScore   *float64       `json:"max_score,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Attempt) IsTerminal() bool {
	return a.Status == AttemptStatusSubmitted || a.Status == AttemptStatusExpired
}

// IsExpiredAt reports whether the attempt's window has lapsed at the given
// instant. Unlimited attempts never expire.
func (a *Attempt) IsExpiredAt(now time.Time) bool {
	if a.ExpiresAt == nil {
		return false
	}
	return !now.Before(*a.ExpiresAt)
}

// RemainingSeconds returns max(0, expires_at - now), or nil for unlimited
// attempts.
func (a *Attempt) RemainingSeconds(now time.Time) *int64 {
	if a.ExpiresAt == nil {
		return nil
	}
	remaining := int64(a.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
