package service

import (
	"sort"
	"sync"
	"time"

	"github.com/tdhoang/examgate/internal/model"
	"github.com/tdhoang/examgate/internal/repository"
	"gorm.io/gorm"
)

// In-memory repository fakes. Not-found lookups return
// gorm.ErrRecordNotFound, matching what the services unwrap.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeExamRepo struct {
	mu     sync.Mutex
	exams  map[uint]model.Exam
	nextID uint
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{exams: make(map[uint]model.Exam), nextID: 1}
}

func (r *fakeExamRepo) Create(exam *model.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exam.ID = r.nextID
	r.nextID++
	r.exams[exam.ID] = *exam
	return nil
}

func (r *fakeExamRepo) FindByID(id uint) (*model.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exam, ok := r.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := exam
	return &out, nil
}

func (r *fakeExamRepo) FindByIDWithQuestions(id uint) (*model.Exam, error) {
	return r.FindByID(id)
}

func (r *fakeExamRepo) FindAllWithQuestionCount(publishedOnly bool) ([]repository.ExamWithQuestionCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.ExamWithQuestionCount, 0, len(r.exams))
	for _, exam := range r.exams {
		if publishedOnly && exam.Status != model.ExamStatusPublished {
			continue
		}
		out = append(out, repository.ExamWithQuestionCount{Exam: exam, QuestionCount: len(exam.Questions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeExamRepo) Update(exam *model.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.exams[exam.ID] = *exam
	return nil
}

func (r *fakeExamRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exams, id)
	return nil
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[uint]model.Question
	nextID    uint
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: make(map[uint]model.Question), nextID: 1}
}

func (r *fakeQuestionRepo) Create(question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	question.ID = r.nextID
	r.nextID++
	r.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) FindByID(id uint) (*model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	question, ok := r.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := question
	return &out, nil
}

func (r *fakeQuestionRepo) FindByExamID(examID uint) ([]model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Question
	for _, q := range r.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakeQuestionRepo) Update(question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.questions, id)
	return nil
}

type fakeChoiceRepo struct {
	mu      sync.Mutex
	choices map[uint]model.Choice
	nextID  uint
}

func newFakeChoiceRepo() *fakeChoiceRepo {
	return &fakeChoiceRepo{choices: make(map[uint]model.Choice), nextID: 1}
}

func (r *fakeChoiceRepo) Create(choice *model.Choice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	choice.ID = r.nextID
	r.nextID++
	r.choices[choice.ID] = *choice
	return nil
}

func (r *fakeChoiceRepo) FindByID(id uint) (*model.Choice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	choice, ok := r.choices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := choice
	return &out, nil
}

func (r *fakeChoiceRepo) FindByQuestionID(questionID uint) ([]model.Choice, error) {
	return r.FindByQuestionIDs([]uint{questionID})
}

func (r *fakeChoiceRepo) FindByQuestionIDs(questionIDs []uint) ([]model.Choice, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	wanted := make(map[uint]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Choice
	for _, c := range r.choices {
		if wanted[c.QuestionID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *fakeChoiceRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.choices, id)
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[uint]model.Attempt
	nextID   uint
	// answers backs the in-transaction selection snapshot of SetSubmitted,
	// mirroring how the real repository reads the answer rows while holding
	// the attempt row lock.
	answers *fakeAnswerRepo
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uint]model.Attempt), nextID: 1}
}

func (r *fakeAttemptRepo) isInProgress(id uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	return ok && attempt.Status == model.AttemptStatusInProgress
}

func (r *fakeAttemptRepo) CreateIfNoneActive(attempt *model.Attempt) (*model.Attempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var existing *model.Attempt
	for id := range r.attempts {
		row := r.attempts[id]
		if row.ExamID == attempt.ExamID && row.UserID == attempt.UserID && row.Status == model.AttemptStatusInProgress {
			if existing == nil || row.ID > existing.ID {
				copied := row
				existing = &copied
			}
		}
	}
	if existing != nil {
		return existing, false, nil
	}
	attempt.ID = r.nextID
	r.nextID++
	r.attempts[attempt.ID] = *attempt
	out := *attempt
	return &out, true, nil
}

func (r *fakeAttemptRepo) FindByID(id uint) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := attempt
	return &out, nil
}

func (r *fakeAttemptRepo) findLatest(examID, userID uint, status string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Attempt
	for id := range r.attempts {
		row := r.attempts[id]
		if row.ExamID == examID && row.UserID == userID && row.Status == status {
			if latest == nil || row.ID > latest.ID {
				copied := row
				latest = &copied
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (r *fakeAttemptRepo) FindActiveByExamAndUser(examID, userID uint) (*model.Attempt, error) {
	return r.findLatest(examID, userID, model.AttemptStatusInProgress)
}

func (r *fakeAttemptRepo) FindSubmittedByExamAndUser(examID, userID uint) (*model.Attempt, error) {
	return r.findLatest(examID, userID, model.AttemptStatusSubmitted)
}

func (r *fakeAttemptRepo) ListByExam(examID uint, userID *uint) ([]model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Attempt
	for _, row := range r.attempts {
		if row.ExamID != examID {
			continue
		}
		if userID != nil && row.UserID != *userID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeAttemptRepo) MarkExpired(id uint, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != model.AttemptStatusInProgress {
		return nil
	}
	finished := finishedAt
	attempt.Status = model.AttemptStatusExpired
	attempt.FinishedAt = &finished
	r.attempts[id] = attempt
	return nil
}

func (r *fakeAttemptRepo) SetSubmitted(id uint, finishedAt time.Time, score func([]model.AttemptAnswer) (float64, float64)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	stored, err := r.answers.ListSelections(id)
	if err != nil {
		return false, err
	}
	scoreVal, maxScore := score(stored)
	finished := finishedAt
	attempt.Status = model.AttemptStatusSubmitted
	attempt.FinishedAt = &finished
	attempt.Score = &scoreVal
	attempt.MaxScore = &maxScore
	r.attempts[id] = attempt
	return true, nil
}

type answerKey struct {
	attemptID  uint
	questionID uint
}

type fakeAnswerRepo struct {
	mu      sync.Mutex
	answers map[answerKey]model.AttemptAnswer
	// attempts backs ApplyBatch's in-progress re-check, mirroring the real
	// repository's attempt row lock. Nil skips the check.
	attempts *fakeAttemptRepo
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{answers: make(map[answerKey]model.AttemptAnswer)}
}

func (r *fakeAnswerRepo) ApplyBatch(attemptID uint, writes []repository.AnswerWrite, answeredAt time.Time) (bool, error) {
	if r.attempts != nil && !r.attempts.isInProgress(attemptID) {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, write := range writes {
		key := answerKey{attemptID, write.QuestionID}
		if write.ChoiceID == nil {
			delete(r.answers, key)
			continue
		}
		r.answers[key] = model.AttemptAnswer{
			AttemptID:  attemptID,
			QuestionID: write.QuestionID,
			ChoiceID:   *write.ChoiceID,
			AnsweredAt: answeredAt,
		}
	}
	return true, nil
}

func (r *fakeAnswerRepo) ListSelections(attemptID uint) ([]model.AttemptAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AttemptAnswer
	for key, answer := range r.answers {
		if key.attemptID == attemptID {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *fakeAnswerRepo) CountAnswered(attemptID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for key := range r.answers {
		if key.attemptID == attemptID {
			count++
		}
	}
	return count, nil
}
