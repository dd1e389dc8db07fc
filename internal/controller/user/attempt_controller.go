package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/examgate/internal/auth"
	"github.com/tdhoang/examgate/internal/controller"
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/service"
)

type AttemptController struct {
	examService    service.ExamService
	attemptService service.AttemptService
	checker        auth.AuthorityChecker
}

func NewAttemptController(examService service.ExamService, attemptService service.AttemptService, checker auth.AuthorityChecker) *AttemptController {
	return &AttemptController{
		examService:    examService,
		attemptService: attemptService,
		checker:        checker,
	}
}

func (c *AttemptController) caller(ctx *gin.Context) (service.Caller, bool) {
	caller, ok := auth.CallerFromContext(ctx, c.checker)
	if !ok {
		controller.RespondUnauthenticated(ctx)
	}
	return caller, ok
}

// ListExams godoc
// @Summary List exams
// @Description Lists exams. Non-authority callers see published exams only.
// @Tags Exams
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Success 200 {array} dto.ExamSummaryDTO
// @Failure 401 {object} dto.ErrorResponse
// @Router /exams [get]
func (c *AttemptController) ListExams(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	exams, err := c.examService.ListExams(caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, exams)
}

// GetExam godoc
// @Summary Get exam details
// @Description Returns an exam with its questions and choices. Correctness flags are included only for authority callers.
// @Tags Exams
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Success 200 {object} dto.ExamResponseDTO
// @Failure 403 {object} dto.ErrorResponse "Exam not published"
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id} [get]
func (c *AttemptController) GetExam(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}
	exam, err := c.examService.GetExam(examID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, exam)
}

// ListQuestions godoc
// @Summary List exam questions
// @Tags Exams
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Success 200 {array} dto.QuestionResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id}/questions [get]
func (c *AttemptController) ListQuestions(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}
	questions, err := c.examService.ListQuestions(examID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, questions)
}

// StartAttempt godoc
// @Summary Start or resume an attempt
// @Description Starts a new attempt, or resumes an unexpired in-progress one (resumed=true). Fails with 409 and the attempt id when the exam was already submitted.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Success 201 {object} dto.StartAttemptDTO
// @Failure 403 {object} dto.ErrorResponse "Exam not published"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Already submitted"
// @Router /exams/{exam_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}

	attempt, err := c.attemptService.Start(examID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}

	log.Info().Uint("examID", examID).Uint("userID", caller.UserID).Bool("resumed", attempt.Resumed).Msg("Attempt started")
	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	ctx.JSON(status, attempt)
}

// Eligibility godoc
// @Summary Check attempt eligibility
// @Description Read-only start/resume decision for an exam and user; reconciles expiry first.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Param target_user_id query int false "User to check (authority only)"
// @Success 200 {object} dto.EligibilityDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id}/attempts/eligibility [get]
func (c *AttemptController) Eligibility(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}
	targetUser, ok := controller.ParseOptionalUserQuery(ctx)
	if !ok {
		return
	}

	eligibility, err := c.attemptService.Eligibility(examID, targetUser, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, eligibility)
}

// ListAttempts godoc
// @Summary List attempts for an exam
// @Description Non-authority callers see only their own attempts.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Param target_user_id query int false "Filter by user (authority only)"
// @Success 200 {object} dto.AttemptListDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}
	targetUser, ok := controller.ParseOptionalUserQuery(ctx)
	if !ok {
		return
	}

	attempts, err := c.attemptService.ListExamAttempts(examID, targetUser, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// GetAttempt godoc
// @Summary Get attempt status
// @Description Returns the attempt with remaining time, answered count and current selections. Expiry is reconciled before the response.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDetailDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}

	attempt, err := c.attemptService.Get(attemptID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetPaper godoc
// @Summary Get the attempt paper
// @Description Returns questions and choices in position order with the caller's stored selections. Only valid while the attempt is in progress. reveal_answers=true additionally includes correctness flags for authority callers.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param attempt_id path int true "Attempt ID"
// @Param reveal_answers query bool false "Include correctness flags (authority only)"
// @Success 200 {object} dto.PaperDTO
// @Failure 400 {object} dto.ErrorResponse "Already submitted"
// @Failure 403 {object} dto.ErrorResponse "Expired"
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/paper [get]
func (c *AttemptController) GetPaper(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}
	revealAnswers := ctx.Query("reveal_answers") == "true"

	paper, err := c.attemptService.GetPaper(attemptID, caller, revealAnswers)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, paper)
}

// SaveAnswers godoc
// @Summary Save a batch of answers
// @Description Upserts selections for the attempt. Duplicate question ids keep the last entry; a null choice clears the selection; the whole batch fails on any invalid entry.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param attempt_id path int true "Attempt ID"
// @Param answers body dto.SaveAnswersDTO true "Answer batch"
// @Success 200 {object} dto.SaveAnswersResultDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid answer or not in progress"
// @Failure 403 {object} dto.ErrorResponse "Expired"
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/answers [put]
func (c *AttemptController) SaveAnswers(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}

	var req dto.SaveAnswersDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("SaveAnswers: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := c.attemptService.SaveAnswers(attemptID, caller, req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Submit godoc
// @Summary Submit an attempt
// @Description Scores the stored answers and finalizes the attempt. Repeat submissions fail with 409 and no re-scoring.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.ReportDTO
// @Failure 403 {object} dto.ErrorResponse "Expired"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Already submitted"
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}

	report, err := c.attemptService.Submit(attemptID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}

	log.Info().Uint("attemptID", attemptID).Float64("score", report.Score).Msg("Attempt submitted")
	ctx.JSON(http.StatusOK, report)
}

// Report godoc
// @Summary Get the attempt report
// @Description Returns the persisted score with a freshly recomputed breakdown. Only valid once submitted.
// @Tags Attempts
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.ReportDTO
// @Failure 400 {object} dto.ErrorResponse "Not submitted"
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/report [get]
func (c *AttemptController) Report(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	attemptID, ok := controller.ParseIDParam(ctx, "attempt_id")
	if !ok {
		return
	}

	report, err := c.attemptService.Report(attemptID, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Me godoc
// @Summary Current caller identity
// @Tags Auth
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} dto.ErrorResponse
// @Router /me [get]
func (c *AttemptController) Me(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":      caller.UserID,
		"is_authority": caller.IsAuthority,
	})
}
