package service

import (
	"testing"

	"github.com/tdhoang/examgate/internal/model"
)

func uintPtr(v uint) *uint { return &v }

func TestScore(t *testing.T) {
	questions := []model.Question{
		{ID: 1, ExamID: 1, Points: 2.0, Position: 1},
		{ID: 2, ExamID: 1, Points: 1.0, Position: 2},
	}
	choices := []model.Choice{
		{ID: 10, QuestionID: 1, IsCorrect: true},
		{ID: 11, QuestionID: 1},
		{ID: 20, QuestionID: 2, IsCorrect: true},
		{ID: 21, QuestionID: 2},
	}

	tests := []struct {
		name       string
		selections map[uint]uint
		wantScore  float64
		wantMax    float64
	}{
		{
			name:       "correct heavy question wrong light question",
			selections: map[uint]uint{1: 10, 2: 21},
			wantScore:  2.0,
			wantMax:    3.0,
		},
		{
			name:       "all correct",
			selections: map[uint]uint{1: 10, 2: 20},
			wantScore:  3.0,
			wantMax:    3.0,
		},
		{
			name:       "no selections still reports full max",
			selections: map[uint]uint{},
			wantScore:  0,
			wantMax:    3.0,
		},
		{
			name:       "partially answered",
			selections: map[uint]uint{2: 20},
			wantScore:  1.0,
			wantMax:    3.0,
		},
		{
			name:       "unknown choice counts as unanswered",
			selections: map[uint]uint{1: 999, 2: 20},
			wantScore:  1.0,
			wantMax:    3.0,
		},
		{
			name:       "choice from another question earns nothing",
			selections: map[uint]uint{1: 20, 2: 20},
			wantScore:  1.0,
			wantMax:    3.0,
		},
	}

	scoring := NewScoringService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scoring.Score(questions, choices, tt.selections)
			if result.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", result.Score, tt.wantScore)
			}
			if result.MaxScore != tt.wantMax {
				t.Errorf("MaxScore = %v, want %v", result.MaxScore, tt.wantMax)
			}
			if len(result.Breakdown) != len(questions) {
				t.Errorf("Breakdown has %d entries, want %d", len(result.Breakdown), len(questions))
			}
		})
	}
}

func TestScoreNonPositivePointsCountAsOne(t *testing.T) {
	questions := []model.Question{
		{ID: 1, ExamID: 1, Points: 0},
		{ID: 2, ExamID: 1, Points: -3},
	}
	choices := []model.Choice{
		{ID: 10, QuestionID: 1, IsCorrect: true},
		{ID: 20, QuestionID: 2, IsCorrect: true},
	}

	result := NewScoringService().Score(questions, choices, map[uint]uint{1: 10, 2: 20})
	if result.Score != 2.0 {
		t.Errorf("Score = %v, want 2.0", result.Score)
	}
	if result.MaxScore != 2.0 {
		t.Errorf("MaxScore = %v, want 2.0", result.MaxScore)
	}
}

func TestScoreEmptyExam(t *testing.T) {
	result := NewScoringService().Score(nil, nil, nil)
	if result.Score != 0 || result.MaxScore != 0 {
		t.Errorf("got score=%v max=%v, want both zero", result.Score, result.MaxScore)
	}
	if len(result.Breakdown) != 0 {
		t.Errorf("Breakdown has %d entries, want 0", len(result.Breakdown))
	}
}

func TestScoreBreakdownReportsInvalidSelection(t *testing.T) {
	questions := []model.Question{{ID: 1, ExamID: 1, Points: 1}}
	choices := []model.Choice{{ID: 10, QuestionID: 1, IsCorrect: true}}

	result := NewScoringService().Score(questions, choices, map[uint]uint{1: 999})
	entry := result.Breakdown[0]
	if entry.SelectedChoiceID == nil || *entry.SelectedChoiceID != 999 {
		t.Errorf("SelectedChoiceID = %v, want 999", entry.SelectedChoiceID)
	}
	if entry.IsCorrect {
		t.Error("invalid selection must not be correct")
	}
	if entry.PointsAwarded != 0 {
		t.Errorf("PointsAwarded = %v, want 0", entry.PointsAwarded)
	}
}

func TestBreakdownDTORedaction(t *testing.T) {
	result := ScoreResult{
		Breakdown: []ScoreBreakdownEntry{
			{QuestionID: 1, SelectedChoiceID: uintPtr(10), IsCorrect: true, PointsAwarded: 2, PointsPossible: 2},
			{QuestionID: 2, PointsPossible: 1},
		},
	}
	scoring := NewScoringService()

	redacted := scoring.BreakdownDTO(result, false)
	for _, entry := range redacted {
		if entry.IsCorrect != nil {
			t.Fatalf("question %d: IsCorrect exposed to non-authority caller", entry.QuestionID)
		}
	}

	revealed := scoring.BreakdownDTO(result, true)
	if revealed[0].IsCorrect == nil || !*revealed[0].IsCorrect {
		t.Error("question 1: IsCorrect should be true for authority caller")
	}
	if revealed[1].IsCorrect == nil || *revealed[1].IsCorrect {
		t.Error("question 2: IsCorrect should be false for authority caller")
	}
	if revealed[0].PointsAwarded != 2 || revealed[0].PointsPossible != 2 {
		t.Errorf("question 1 points: got %v/%v, want 2/2", revealed[0].PointsAwarded, revealed[0].PointsPossible)
	}
}
