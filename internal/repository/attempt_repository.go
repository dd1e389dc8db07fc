package repository

import (
	"errors"
	"time"

	"github.com/tdhoang/examgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	// CreateIfNoneActive inserts the attempt unless an in_progress row already
	// exists for the same (exam, user). The check and the insert run in one
	// transaction with any existing row locked; when two concurrent starts
	// both pass the empty check, the partial unique index fails the second
	// insert and the loser receives the winner's row with created=false.
	CreateIfNoneActive(attempt *model.Attempt) (*model.Attempt, bool, error)
	FindByID(id uint) (*model.Attempt, error)
	FindActiveByExamAndUser(examID, userID uint) (*model.Attempt, error)
	FindSubmittedByExamAndUser(examID, userID uint) (*model.Attempt, error)
	ListByExam(examID uint, userID *uint) ([]model.Attempt, error)
	// MarkExpired transitions an in_progress attempt to expired. Calling it on
	// an already-terminal attempt is a no-op.
	MarkExpired(id uint, finishedAt time.Time) error
	// SetSubmitted atomically flips an in_progress attempt to submitted,
	// scoring the answer rows as frozen by the flip: the attempt row is
	// locked for the whole transaction and the selections are read inside it,
	// so a racing answer batch either commits before the snapshot or fails
	// its own in-progress check afterwards. Returns false without writing
	// when the attempt was no longer in_progress.
	SetSubmitted(id uint, finishedAt time.Time, score func(selections []model.AttemptAnswer) (score, maxScore float64)) (bool, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) CreateIfNoneActive(attempt *model.Attempt) (*model.Attempt, bool, error) {
	var result model.Attempt
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("exam_id = ? AND user_id = ? AND status = ?", attempt.ExamID, attempt.UserID, model.AttemptStatusInProgress).
			Order("id DESC").
			First(&existing).Error
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		result = *attempt
		created = true
		return nil
	})
	if err != nil {
		// The locked read serializes nothing when no row exists yet: two
		// concurrent starts can both reach the insert, and the partial unique
		// index idx_attempts_one_active rejects the second. The loser resumes
		// the winner's row instead of surfacing the violation.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, lookupErr := r.FindActiveByExamAndUser(attempt.ExamID, attempt.UserID)
			if lookupErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}
	return &result, created, nil
}

func (r *attemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindActiveByExamAndUser(examID, userID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Where("exam_id = ? AND user_id = ? AND status = ?", examID, userID, model.AttemptStatusInProgress).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindSubmittedByExamAndUser(examID, userID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Where("exam_id = ? AND user_id = ? AND status = ?", examID, userID, model.AttemptStatusSubmitted).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) ListByExam(examID uint, userID *uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.db.Where("exam_id = ?", examID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	err := query.Order("started_at DESC, id DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) MarkExpired(id uint, finishedAt time.Time) error {
	// Conditional on in_progress so terminal states stay immutable and
	// repeated expiry detection stays idempotent.
	return r.db.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, model.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"status":      model.AttemptStatusExpired,
			"finished_at": finishedAt,
		}).Error
}

func (r *attemptRepository) SetSubmitted(id uint, finishedAt time.Time, score func([]model.AttemptAnswer) (float64, float64)) (bool, error) {
	updated := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, model.AttemptStatusInProgress).
			First(&attempt).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var answers []model.AttemptAnswer
		if err := tx.Where("attempt_id = ?", id).Order("question_id ASC").Find(&answers).Error; err != nil {
			return err
		}
		scoreVal, maxScore := score(answers)

		if err := tx.Model(&model.Attempt{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":      model.AttemptStatusSubmitted,
				"finished_at": finishedAt,
				"score":       scoreVal,
				"max_score":   maxScore,
			}).Error; err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}
