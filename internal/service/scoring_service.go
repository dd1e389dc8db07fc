package service

import (
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/model"
)

// ScoreBreakdownEntry is the per-question scoring detail.
type ScoreBreakdownEntry struct {
	QuestionID       uint
	SelectedChoiceID *uint
	IsCorrect        bool
	PointsAwarded    float64
	PointsPossible   float64
}

type ScoreResult struct {
	Score     float64
	MaxScore  float64
	Breakdown []ScoreBreakdownEntry
}

// ScoringService turns stored selections into a point breakdown. Pure
// computation, no I/O.
type ScoringService interface {
	// Score awards each question's full points iff the selected choice is
	// correct. A selection pointing at a choice that does not exist, or that
	// belongs to another question, counts as unanswered. MaxScore accumulates
	// every question's worth regardless of the selections.
	Score(questions []model.Question, choices []model.Choice, selections map[uint]uint) ScoreResult
	// BreakdownDTO renders a breakdown for a caller. Correctness is stripped
	// unless revealCorrectness is set; the redaction is policy, not a rule
	// baked into Score.
	BreakdownDTO(result ScoreResult, revealCorrectness bool) []dto.BreakdownEntryDTO
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

func (s *scoringService) Score(questions []model.Question, choices []model.Choice, selections map[uint]uint) ScoreResult {
	choiceByID := make(map[uint]model.Choice, len(choices))
	for _, c := range choices {
		choiceByID[c.ID] = c
	}

	result := ScoreResult{Breakdown: make([]ScoreBreakdownEntry, 0, len(questions))}
	for _, q := range questions {
		points := q.EffectivePoints()
		result.MaxScore += points

		entry := ScoreBreakdownEntry{
			QuestionID:     q.ID,
			PointsPossible: points,
		}

		if choiceID, answered := selections[q.ID]; answered {
			selected := choiceID
			entry.SelectedChoiceID = &selected
			choice, ok := choiceByID[choiceID]
			entry.IsCorrect = ok && choice.QuestionID == q.ID && choice.IsCorrect
		}
		if entry.IsCorrect {
			entry.PointsAwarded = points
			result.Score += points
		}
		result.Breakdown = append(result.Breakdown, entry)
	}
	return result
}

func (s *scoringService) BreakdownDTO(result ScoreResult, revealCorrectness bool) []dto.BreakdownEntryDTO {
	entries := make([]dto.BreakdownEntryDTO, 0, len(result.Breakdown))
	for _, item := range result.Breakdown {
		entry := dto.BreakdownEntryDTO{
			QuestionID:       item.QuestionID,
			SelectedChoiceID: item.SelectedChoiceID,
			PointsAwarded:    item.PointsAwarded,
			PointsPossible:   item.PointsPossible,
		}
		if revealCorrectness {
			correct := item.IsCorrect
			entry.IsCorrect = &correct
		}
		entries = append(entries, entry)
	}
	return entries
}
