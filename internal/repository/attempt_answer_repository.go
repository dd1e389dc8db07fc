package repository

import (
	"errors"
	"time"

	"github.com/tdhoang/examgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnswerWrite is one entry of a deduplicated answer batch. A nil ChoiceID
// clears the stored selection for the question.
type AnswerWrite struct {
	QuestionID uint
	ChoiceID   *uint
}

type AttemptAnswerRepository interface {
	// ApplyBatch writes the batch in one transaction with the parent attempt
	// row locked and re-checked to still be in_progress, so no answer can
	// land after a concurrent submit or expiry turned the attempt terminal.
	// Each write replaces any stored selection for its (attempt, question)
	// key; the unique index guarantees at most one row per key. Returns false
	// without writing when the attempt was no longer in_progress.
	ApplyBatch(attemptID uint, writes []AnswerWrite, answeredAt time.Time) (bool, error)
	ListSelections(attemptID uint) ([]model.AttemptAnswer, error)
	CountAnswered(attemptID uint) (int64, error)
}

type attemptAnswerRepository struct {
	db *gorm.DB
}

func NewAttemptAnswerRepository(db *gorm.DB) AttemptAnswerRepository {
	return &attemptAnswerRepository{db: db}
}

func (r *attemptAnswerRepository) ApplyBatch(attemptID uint, writes []AnswerWrite, answeredAt time.Time) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", attemptID, model.AttemptStatusInProgress).
			First(&attempt).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		for _, write := range writes {
			if write.ChoiceID == nil {
				if err := tx.
					Where("attempt_id = ? AND question_id = ?", attemptID, write.QuestionID).
					Delete(&model.AttemptAnswer{}).Error; err != nil {
					return err
				}
				continue
			}
			answer := model.AttemptAnswer{
				AttemptID:  attemptID,
				QuestionID: write.QuestionID,
				ChoiceID:   *write.ChoiceID,
				AnsweredAt: answeredAt,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"choice_id", "answered_at"}),
			}).Create(&answer).Error; err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *attemptAnswerRepository) ListSelections(attemptID uint) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.db.
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *attemptAnswerRepository) CountAnswered(attemptID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.AttemptAnswer{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error
	return count, err
}
