package service

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/model"
	"github.com/tdhoang/examgate/internal/repository"
	"gorm.io/gorm"
)

// ExamService covers exam authoring and browsing. Authoring operations are
// authority-only; browsing redacts correctness and unpublished exams for
// everyone else.
type ExamService interface {
	CreateExam(req dto.ExamCreateDTO, caller Caller) (*dto.ExamResponseDTO, error)
	GetExam(examID uint, caller Caller) (*dto.ExamResponseDTO, error)
	ListExams(caller Caller) ([]dto.ExamSummaryDTO, error)
	UpdateExam(examID uint, req dto.ExamUpdateDTO, caller Caller) (*dto.ExamResponseDTO, error)
	DeleteExam(examID uint, caller Caller) error
	AddQuestion(examID uint, req dto.QuestionCreateDTO, caller Caller) (*dto.QuestionResponseDTO, error)
	ListQuestions(examID uint, caller Caller) ([]dto.QuestionResponseDTO, error)
}

type examService struct {
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
	choiceRepo   repository.ChoiceRepository
}

func NewExamService(
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
	choiceRepo repository.ChoiceRepository,
) ExamService {
	return &examService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		choiceRepo:   choiceRepo,
	}
}

func (s *examService) CreateExam(req dto.ExamCreateDTO, caller Caller) (*dto.ExamResponseDTO, error) {
	if err := requireAuthority(caller); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, qReq := range req.Questions {
		question, err := buildQuestion(qReq, i+1)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *question)
	}

	exam := model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		Status:          model.ExamStatusDraft,
		CreatedBy:       caller.UserID,
		Questions:       questions,
	}

	if err := s.examRepo.Create(&exam); err != nil {
		log.Error().Err(err).Msg("CreateExam: failed to create exam")
		return nil, ErrPersistence("unable to create exam")
	}

	created, err := s.examRepo.FindByIDWithQuestions(exam.ID)
	if err != nil {
		log.Error().Err(err).Uint("examID", exam.ID).Msg("CreateExam: failed to reload created exam")
		created = &exam
	}
	return toExamResponse(created, true), nil
}

func (s *examService) GetExam(examID uint, caller Caller) (*dto.ExamResponseDTO, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		return nil, ErrPersistence("unable to load exam")
	}
	if !caller.IsAuthority && !exam.IsPublished() {
		return nil, ErrNotPublished()
	}
	return toExamResponse(exam, caller.IsAuthority), nil
}

func (s *examService) ListExams(caller Caller) ([]dto.ExamSummaryDTO, error) {
	exams, err := s.examRepo.FindAllWithQuestionCount(!caller.IsAuthority)
	if err != nil {
		log.Error().Err(err).Msg("ListExams: failed to list exams")
		return nil, ErrPersistence("unable to list exams")
	}

	summaries := make([]dto.ExamSummaryDTO, 0, len(exams))
	for _, exam := range exams {
		var summary dto.ExamSummaryDTO
		if err := copier.Copy(&summary, &exam.Exam); err != nil {
			log.Warn().Err(err).Uint("examID", exam.ID).Msg("ListExams: failed to map exam summary")
			continue
		}
		summary.QuestionCount = exam.QuestionCount
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *examService) UpdateExam(examID uint, req dto.ExamUpdateDTO, caller Caller) (*dto.ExamResponseDTO, error) {
	if err := requireAuthority(caller); err != nil {
		return nil, err
	}

	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		return nil, ErrPersistence("unable to load exam")
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.DurationSeconds != nil {
		// Only affects attempts started afterwards; expires_at is derived
		// once at attempt creation.
		exam.DurationSeconds = *req.DurationSeconds
	}
	if req.Status != nil {
		exam.Status = *req.Status
	}

	if err := s.examRepo.Update(exam); err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("UpdateExam: failed to update exam")
		return nil, ErrPersistence("unable to update exam")
	}

	updated, err := s.examRepo.FindByIDWithQuestions(examID)
	if err != nil {
		updated = exam
	}
	return toExamResponse(updated, true), nil
}

func (s *examService) DeleteExam(examID uint, caller Caller) error {
	if err := requireAuthority(caller); err != nil {
		return err
	}
	if _, err := s.examRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound("exam not found")
		}
		return ErrPersistence("unable to load exam")
	}
	if err := s.examRepo.Delete(examID); err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("DeleteExam: failed to delete exam")
		return ErrPersistence("unable to delete exam")
	}
	return nil
}

func (s *examService) AddQuestion(examID uint, req dto.QuestionCreateDTO, caller Caller) (*dto.QuestionResponseDTO, error) {
	if err := requireAuthority(caller); err != nil {
		return nil, err
	}

	if _, err := s.examRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		return nil, ErrPersistence("unable to load exam")
	}

	existing, err := s.questionRepo.FindByExamID(examID)
	if err != nil {
		return nil, ErrPersistence("unable to load questions")
	}

	question, err := buildQuestion(req, len(existing)+1)
	if err != nil {
		return nil, err
	}
	question.ExamID = examID

	if err := s.questionRepo.Create(question); err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("AddQuestion: failed to create question")
		return nil, ErrPersistence("unable to create question")
	}

	resp := toQuestionResponse(question, true)
	return &resp, nil
}

func (s *examService) ListQuestions(examID uint, caller Caller) ([]dto.QuestionResponseDTO, error) {
	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		return nil, ErrPersistence("unable to load exam")
	}
	if !caller.IsAuthority && !exam.IsPublished() {
		return nil, ErrNotPublished()
	}

	questions, err := s.questionRepo.FindByExamID(examID)
	if err != nil {
		return nil, ErrPersistence("unable to load questions")
	}
	questionIDs := make([]uint, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}
	choices, err := s.choiceRepo.FindByQuestionIDs(questionIDs)
	if err != nil {
		return nil, ErrPersistence("unable to load choices")
	}
	choicesByQuestion := make(map[uint][]model.Choice, len(questions))
	for _, c := range choices {
		choicesByQuestion[c.QuestionID] = append(choicesByQuestion[c.QuestionID], c)
	}

	responses := make([]dto.QuestionResponseDTO, 0, len(questions))
	for i := range questions {
		questions[i].Choices = choicesByQuestion[questions[i].ID]
		responses = append(responses, toQuestionResponse(&questions[i], caller.IsAuthority))
	}
	return responses, nil
}

func requireAuthority(caller Caller) error {
	if caller.UserID == 0 {
		return ErrNotAuthenticated()
	}
	if !caller.IsAuthority {
		return ErrForbidden("you cannot manage exams")
	}
	return nil
}

// buildQuestion validates an authored question: at least two choices with
// exactly one marked correct.
func buildQuestion(req dto.QuestionCreateDTO, defaultPosition int) (*model.Question, error) {
	correctCount := 0
	choices := make([]model.Choice, 0, len(req.Choices))
	for i, cReq := range req.Choices {
		if cReq.IsCorrect {
			correctCount++
		}
		position := cReq.Position
		if position == 0 {
			position = i + 1
		}
		choices = append(choices, model.Choice{
			Text:      cReq.Text,
			IsCorrect: cReq.IsCorrect,
			Position:  position,
		})
	}
	if correctCount != 1 {
		return nil, ErrInvalidAnswer(fmt.Sprintf("a question must have exactly one correct choice, got %d", correctCount))
	}

	position := req.Position
	if position == 0 {
		position = defaultPosition
	}
	return &model.Question{
		Prompt:   req.Prompt,
		Points:   req.Points,
		Position: position,
		Choices:  choices,
	}, nil
}

func toQuestionResponse(question *model.Question, revealCorrectness bool) dto.QuestionResponseDTO {
	resp := dto.QuestionResponseDTO{
		ID:       question.ID,
		ExamID:   question.ExamID,
		Prompt:   question.Prompt,
		Points:   question.Points,
		Position: question.Position,
	}
	for _, choice := range question.Choices {
		entry := dto.ChoiceResponseDTO{ID: choice.ID, Text: choice.Text, Position: choice.Position}
		if revealCorrectness {
			correct := choice.IsCorrect
			entry.IsCorrect = &correct
		}
		resp.Choices = append(resp.Choices, entry)
	}
	return resp
}

func toExamResponse(exam *model.Exam, revealCorrectness bool) *dto.ExamResponseDTO {
	resp := &dto.ExamResponseDTO{
		ID:              exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationSeconds: exam.DurationSeconds,
		Status:          exam.Status,
		CreatedAt:       exam.CreatedAt,
	}
	for i := range exam.Questions {
		resp.Questions = append(resp.Questions, toQuestionResponse(&exam.Questions[i], revealCorrectness))
	}
	return resp
}
