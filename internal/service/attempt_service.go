package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/model"
	"github.com/tdhoang/examgate/internal/repository"
	"gorm.io/gorm"
)

const (
	eligibilityActionStart  = "start"
	eligibilityActionResume = "resume"
	eligibilityActionReport = "report"
)

// Caller identifies the requesting user. IsAuthority is the exam-management
// capability decided by the auth layer; the service only consumes the flag.
type Caller struct {
	UserID      uint
	IsAuthority bool
}

// AttemptService drives the attempt state machine: creation, idempotent
// resume, lazy expiry, answer recording and submission.
type AttemptService interface {
	Start(examID uint, caller Caller) (*dto.StartAttemptDTO, error)
	Eligibility(examID uint, userID *uint, caller Caller) (*dto.EligibilityDTO, error)
	Get(attemptID uint, caller Caller) (*dto.AttemptDetailDTO, error)
	GetPaper(attemptID uint, caller Caller, revealAnswers bool) (*dto.PaperDTO, error)
	SaveAnswers(attemptID uint, caller Caller, req dto.SaveAnswersDTO) (*dto.SaveAnswersResultDTO, error)
	Submit(attemptID uint, caller Caller) (*dto.ReportDTO, error)
	Report(attemptID uint, caller Caller) (*dto.ReportDTO, error)
	ListExamAttempts(examID uint, userID *uint, caller Caller) (*dto.AttemptListDTO, error)
}

type attemptService struct {
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
	choiceRepo   repository.ChoiceRepository
	attemptRepo  repository.AttemptRepository
	answerRepo   repository.AttemptAnswerRepository
	scoring      ScoringService
	clock        Clock
}

func NewAttemptService(
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
	choiceRepo repository.ChoiceRepository,
	attemptRepo repository.AttemptRepository,
	answerRepo repository.AttemptAnswerRepository,
	scoring ScoringService,
	clock Clock,
) AttemptService {
	return &attemptService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		choiceRepo:   choiceRepo,
		attemptRepo:  attemptRepo,
		answerRepo:   answerRepo,
		scoring:      scoring,
		clock:        clock,
	}
}

func (s *attemptService) Start(examID uint, caller Caller) (*dto.StartAttemptDTO, error) {
	if caller.UserID == 0 {
		return nil, ErrNotAuthenticated()
	}

	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		log.Error().Err(err).Uint("examID", examID).Msg("Start: failed to load exam")
		return nil, ErrPersistence("unable to load exam")
	}
	if !caller.IsAuthority && !exam.IsPublished() {
		return nil, ErrNotPublished()
	}

	now := s.clock.Now()

	submitted, err := s.attemptRepo.FindSubmittedByExamAndUser(examID, caller.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Uint("examID", examID).Msg("Start: failed to look up submitted attempt")
		return nil, ErrPersistence("unable to look up attempts")
	}

	active, err := s.attemptRepo.FindActiveByExamAndUser(examID, caller.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Uint("examID", examID).Msg("Start: failed to look up active attempt")
		return nil, ErrPersistence("unable to look up attempts")
	}

	if submitted != nil {
		// A stale active row next to a submitted one is reconciled on the way
		// out so it cannot block future reads.
		if active != nil {
			s.expire(active, now)
		}
		return nil, ErrAlreadySubmitted(submitted.ID)
	}

	if active != nil {
		if !active.IsExpiredAt(now) {
			resumed := s.toAttemptDTO(active, now)
			return &dto.StartAttemptDTO{AttemptDTO: resumed, Resumed: true}, nil
		}
		s.expire(active, now)
	}

	attempt := &model.Attempt{
		ExamID:    examID,
		UserID:    caller.UserID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: now,
		ExpiresAt: expiryFor(exam.DurationSeconds, now),
	}

	row, created, err := s.attemptRepo.CreateIfNoneActive(attempt)
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Uint("userID", caller.UserID).Msg("Start: failed to create attempt")
		return nil, ErrPersistence("unable to start attempt")
	}

	// created=false means a concurrent start won the insert; the loser
	// resumes the winner's attempt instead of failing.
	out := s.toAttemptDTO(row, now)
	return &dto.StartAttemptDTO{AttemptDTO: out, Resumed: !created}, nil
}

func (s *attemptService) Eligibility(examID uint, userID *uint, caller Caller) (*dto.EligibilityDTO, error) {
	if caller.UserID == 0 {
		return nil, ErrNotAuthenticated()
	}

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

	requestedUser := caller.UserID
	if userID != nil {
		if !caller.IsAuthority && *userID != caller.UserID {
			return nil, ErrForbidden("you cannot access this attempt")
		}
		requestedUser = *userID
	}

	now := s.clock.Now()

	out := &dto.EligibilityDTO{
		ExamID:   examID,
		UserID:   requestedUser,
		CanStart: true,
		Action:   eligibilityActionStart,
	}

	submitted, err := s.attemptRepo.FindSubmittedByExamAndUser(examID, requestedUser)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersistence("unable to look up attempts")
	}
	if submitted != nil {
		out.CanStart = false
		out.Action = eligibilityActionReport
		return out, nil
	}

	active, err := s.attemptRepo.FindActiveByExamAndUser(examID, requestedUser)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersistence("unable to look up attempts")
	}
	if active != nil && active.IsExpiredAt(now) {
		// Reconcile before reporting so a stale in_progress row is never
		// surfaced as active.
		s.expire(active, now)
		active = nil
	}
	if active != nil {
		activeDTO := s.toAttemptDTO(active, now)
		out.HasActiveAttempt = true
		out.ActiveAttempt = &activeDTO
		out.Action = eligibilityActionResume
	}
	return out, nil
}

func (s *attemptService) Get(attemptID uint, caller Caller) (*dto.AttemptDetailDTO, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.enforceAccess(attempt, caller); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	s.reconcileExpiry(attempt, now)

	answeredCount, err := s.answerRepo.CountAnswered(attemptID)
	if err != nil {
		return nil, ErrPersistence("unable to count answers")
	}
	selections, err := s.answerRepo.ListSelections(attemptID)
	if err != nil {
		return nil, ErrPersistence("unable to load answers")
	}

	return &dto.AttemptDetailDTO{
		AttemptDTO:    s.toAttemptDTO(attempt, now),
		AnsweredCount: answeredCount,
		Answers:       toSelectionDTOs(selections),
	}, nil
}

func (s *attemptService) GetPaper(attemptID uint, caller Caller, revealAnswers bool) (*dto.PaperDTO, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.enforceAccess(attempt, caller); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.requireInProgress(attempt, now); err != nil {
		return nil, err
	}

	questions, choices, err := s.loadExamContent(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	selections, err := s.answerRepo.ListSelections(attemptID)
	if err != nil {
		return nil, ErrPersistence("unable to load answers")
	}

	reveal := revealAnswers && caller.IsAuthority
	choicesByQuestion := make(map[uint][]dto.ChoiceResponseDTO, len(questions))
	for _, c := range choices {
		entry := dto.ChoiceResponseDTO{ID: c.ID, Text: c.Text, Position: c.Position}
		if reveal {
			correct := c.IsCorrect
			entry.IsCorrect = &correct
		}
		choicesByQuestion[c.QuestionID] = append(choicesByQuestion[c.QuestionID], entry)
	}
	selectionByQuestion := make(map[uint]uint, len(selections))
	for _, sel := range selections {
		selectionByQuestion[sel.QuestionID] = sel.ChoiceID
	}

	paperQuestions := make([]dto.PaperQuestionDTO, 0, len(questions))
	for _, q := range questions {
		pq := dto.PaperQuestionDTO{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Points:   q.Points,
			Position: q.Position,
			Choices:  choicesByQuestion[q.ID],
		}
		if choiceID, ok := selectionByQuestion[q.ID]; ok {
			selected := choiceID
			pq.SelectedChoiceID = &selected
		}
		paperQuestions = append(paperQuestions, pq)
	}

	return &dto.PaperDTO{
		Attempt:   s.toAttemptDTO(attempt, now),
		Questions: paperQuestions,
	}, nil
}

func (s *attemptService) SaveAnswers(attemptID uint, caller Caller, req dto.SaveAnswersDTO) (*dto.SaveAnswersResultDTO, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.enforceAccess(attempt, caller); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.requireInProgress(attempt, now); err != nil {
		return nil, err
	}

	// Last occurrence wins within one batch; earlier duplicates are dropped
	// before anything touches storage.
	deduped := dedupeAnswers(req.Answers)

	questions, err := s.questionRepo.FindByExamID(attempt.ExamID)
	if err != nil {
		return nil, ErrPersistence("unable to load questions")
	}
	questionByID := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
	}

	// Validate the whole batch before the first write: any bad entry fails
	// the call with nothing committed.
	for _, entry := range deduped {
		if _, ok := questionByID[entry.QuestionID]; !ok {
			return nil, ErrInvalidAnswer(fmt.Sprintf("question %d does not belong to this exam", entry.QuestionID))
		}
		choiceID := entry.Choice()
		if choiceID == nil {
			continue
		}
		choice, err := s.choiceRepo.FindByID(*choiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidAnswer(fmt.Sprintf("choice %d does not exist", *choiceID))
			}
			return nil, ErrPersistence("unable to load choice")
		}
		if choice.QuestionID != entry.QuestionID {
			return nil, ErrInvalidAnswer(fmt.Sprintf("choice %d does not belong to question %d", *choiceID, entry.QuestionID))
		}
	}

	writes := make([]repository.AnswerWrite, 0, len(deduped))
	for _, entry := range deduped {
		writes = append(writes, repository.AnswerWrite{QuestionID: entry.QuestionID, ChoiceID: entry.Choice()})
	}

	applied, err := s.answerRepo.ApplyBatch(attemptID, writes, now)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("SaveAnswers: failed to write answer batch")
		return nil, ErrPersistence("unable to save answers")
	}
	if !applied {
		// The attempt turned terminal between our status check and the write;
		// nothing was stored. Report the state that won.
		current, loadErr := s.loadAttempt(attemptID)
		if loadErr != nil {
			return nil, loadErr
		}
		switch current.Status {
		case model.AttemptStatusSubmitted:
			return nil, ErrAlreadySubmitted(current.ID)
		case model.AttemptStatusExpired:
			return nil, ErrExpired()
		default:
			return nil, ErrNotInProgress()
		}
	}
	savedCount := len(writes)

	answeredCount, err := s.answerRepo.CountAnswered(attemptID)
	if err != nil {
		return nil, ErrPersistence("unable to count answers")
	}
	selections, err := s.answerRepo.ListSelections(attemptID)
	if err != nil {
		return nil, ErrPersistence("unable to load answers")
	}

	return &dto.SaveAnswersResultDTO{
		AttemptID:        attemptID,
		SavedCount:       savedCount,
		AnsweredCount:    answeredCount,
		RemainingSeconds: attempt.RemainingSeconds(now),
		Answers:          toSelectionDTOs(selections),
	}, nil
}

func (s *attemptService) Submit(attemptID uint, caller Caller) (*dto.ReportDTO, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.enforceAccess(attempt, caller); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.requireInProgress(attempt, now); err != nil {
		return nil, err
	}

	questions, choices, err := s.loadExamContent(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	// Scoring runs over the selections as frozen by the terminal write itself,
	// so an answer batch that lands just before the flip is counted and one
	// that would land after is rejected by its own in-progress check.
	var result ScoreResult
	updated, err := s.attemptRepo.SetSubmitted(attemptID, now, func(stored []model.AttemptAnswer) (float64, float64) {
		selections := make(map[uint]uint, len(stored))
		for _, answer := range stored {
			selections[answer.QuestionID] = answer.ChoiceID
		}
		result = s.scoring.Score(questions, choices, selections)
		return result.Score, result.MaxScore
	})
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Submit: terminal write failed")
		return nil, ErrPersistence("unable to submit attempt")
	}
	if !updated {
		// Lost the race against a concurrent submit or expiry; report the
		// state that won.
		current, loadErr := s.loadAttempt(attemptID)
		if loadErr != nil {
			return nil, loadErr
		}
		switch current.Status {
		case model.AttemptStatusSubmitted:
			return nil, ErrAlreadySubmitted(current.ID)
		case model.AttemptStatusExpired:
			return nil, ErrExpired()
		default:
			return nil, ErrNotInProgress()
		}
	}

	submittedAt := now
	return &dto.ReportDTO{
		AttemptID:   attemptID,
		Score:       result.Score,
		MaxScore:    result.MaxScore,
		SubmittedAt: &submittedAt,
		Breakdown:   s.scoring.BreakdownDTO(result, caller.IsAuthority),
	}, nil
}

func (s *attemptService) Report(attemptID uint, caller Caller) (*dto.ReportDTO, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.enforceAccess(attempt, caller); err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		return nil, ErrNotSubmitted()
	}

	// The breakdown is recomputed from stored answers as an audit trail, but
	// the persisted score stays authoritative.
	result, err := s.scoreAttempt(attempt)
	if err != nil {
		return nil, err
	}
	score := result.Score
	if attempt.Score != nil {
		score = *attempt.Score
	}
	maxScore := result.MaxScore
	if attempt.MaxScore != nil {
		maxScore = *attempt.MaxScore
	}

	return &dto.ReportDTO{
		AttemptID:   attemptID,
		Score:       score,
		MaxScore:    maxScore,
		SubmittedAt: attempt.FinishedAt,
		Breakdown:   s.scoring.BreakdownDTO(result, caller.IsAuthority),
	}, nil
}

func (s *attemptService) ListExamAttempts(examID uint, userID *uint, caller Caller) (*dto.AttemptListDTO, error) {
	if caller.UserID == 0 {
		return nil, ErrNotAuthenticated()
	}
	if _, err := s.examRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("exam not found")
		}
		return nil, ErrPersistence("unable to load exam")
	}

	if !caller.IsAuthority {
		own := caller.UserID
		userID = &own
	}

	attempts, err := s.attemptRepo.ListByExam(examID, userID)
	if err != nil {
		return nil, ErrPersistence("unable to list attempts")
	}

	now := s.clock.Now()
	summaries := make([]dto.AttemptSummaryDTO, 0, len(attempts))
	for i := range attempts {
		attempt := &attempts[i]
		s.reconcileExpiry(attempt, now)
		answeredCount, err := s.answerRepo.CountAnswered(attempt.ID)
		if err != nil {
			return nil, ErrPersistence("unable to count answers")
		}
		summaries = append(summaries, dto.AttemptSummaryDTO{
			AttemptDTO:    s.toAttemptDTO(attempt, now),
			AnsweredCount: answeredCount,
		})
	}

	return &dto.AttemptListDTO{ExamID: examID, UserID: userID, Attempts: summaries}, nil
}

func (s *attemptService) loadAttempt(attemptID uint) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("attempt not found")
		}
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("failed to load attempt")
		return nil, ErrPersistence("unable to load attempt")
	}
	return attempt, nil
}

func (s *attemptService) enforceAccess(attempt *model.Attempt, caller Caller) error {
	if caller.UserID == 0 {
		return ErrNotAuthenticated()
	}
	if caller.IsAuthority {
		return nil
	}
	if attempt.UserID != caller.UserID {
		return ErrForbidden("you cannot access this attempt")
	}
	return nil
}

// reconcileExpiry is the lazy-expiry step invoked at the top of every
// operation that inspects an attempt. It persists the transition but never
// fails the surrounding call; re-detecting an already-expired attempt is a
// no-op.
func (s *attemptService) reconcileExpiry(attempt *model.Attempt, now time.Time) bool {
	if attempt.Status != model.AttemptStatusInProgress || !attempt.IsExpiredAt(now) {
		return false
	}
	s.expire(attempt, now)
	return true
}

func (s *attemptService) expire(attempt *model.Attempt, now time.Time) {
	if err := s.attemptRepo.MarkExpired(attempt.ID, now); err != nil {
		log.Warn().Err(err).Uint("attemptID", attempt.ID).Msg("failed to persist attempt expiry")
	}
	finished := now
	attempt.Status = model.AttemptStatusExpired
	attempt.FinishedAt = &finished
}

// requireInProgress reconciles expiry and rejects terminal attempts with the
// matching typed error.
func (s *attemptService) requireInProgress(attempt *model.Attempt, now time.Time) error {
	s.reconcileExpiry(attempt, now)
	switch attempt.Status {
	case model.AttemptStatusInProgress:
		return nil
	case model.AttemptStatusSubmitted:
		return ErrAlreadySubmitted(attempt.ID)
	case model.AttemptStatusExpired:
		return ErrExpired()
	default:
		return ErrNotInProgress()
	}
}

func (s *attemptService) loadExamContent(examID uint) ([]model.Question, []model.Choice, error) {
	questions, err := s.questionRepo.FindByExamID(examID)
	if err != nil {
		return nil, nil, ErrPersistence("unable to load questions")
	}
	questionIDs := make([]uint, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}
	choices, err := s.choiceRepo.FindByQuestionIDs(questionIDs)
	if err != nil {
		return nil, nil, ErrPersistence("unable to load choices")
	}
	return questions, choices, nil
}

func (s *attemptService) scoreAttempt(attempt *model.Attempt) (ScoreResult, error) {
	questions, choices, err := s.loadExamContent(attempt.ExamID)
	if err != nil {
		return ScoreResult{}, err
	}
	stored, err := s.answerRepo.ListSelections(attempt.ID)
	if err != nil {
		return ScoreResult{}, ErrPersistence("unable to load answers")
	}
	selections := make(map[uint]uint, len(stored))
	for _, answer := range stored {
		selections[answer.QuestionID] = answer.ChoiceID
	}
	return s.scoring.Score(questions, choices, selections), nil
}

func (s *attemptService) toAttemptDTO(attempt *model.Attempt, now time.Time) dto.AttemptDTO {
	out := dto.AttemptDTO{
		ID:         attempt.ID,
		ExamID:     attempt.ExamID,
		UserID:     attempt.UserID,
		Status:     attempt.Status,
		StartedAt:  attempt.StartedAt,
		ExpiresAt:  attempt.ExpiresAt,
		FinishedAt: attempt.FinishedAt,
	}
	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		// Remaining time is meaningless once submitted.
	case model.AttemptStatusExpired:
		zero := int64(0)
		out.RemainingSeconds = &zero
	default:
		out.RemainingSeconds = attempt.RemainingSeconds(now)
	}
	return out
}

func expiryFor(durationSeconds int, now time.Time) *time.Time {
	if durationSeconds <= 0 {
		return nil
	}
	expires := now.Add(time.Duration(durationSeconds) * time.Second)
	return &expires
}

func dedupeAnswers(entries []dto.AnswerEntryDTO) []dto.AnswerEntryDTO {
	latest := make(map[uint]dto.AnswerEntryDTO, len(entries))
	order := make([]uint, 0, len(entries))
	for _, entry := range entries {
		if _, seen := latest[entry.QuestionID]; !seen {
			order = append(order, entry.QuestionID)
		}
		latest[entry.QuestionID] = entry
	}
	deduped := make([]dto.AnswerEntryDTO, 0, len(order))
	for _, questionID := range order {
		deduped = append(deduped, latest[questionID])
	}
	return deduped
}

func toSelectionDTOs(answers []model.AttemptAnswer) []dto.AnswerSelectionDTO {
	selections := make([]dto.AnswerSelectionDTO, 0, len(answers))
	for _, answer := range answers {
		selections = append(selections, dto.AnswerSelectionDTO{
			QuestionID: answer.QuestionID,
			ChoiceID:   answer.ChoiceID,
		})
	}
	return selections
}
