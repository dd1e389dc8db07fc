package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/examgate/internal/auth"
	"github.com/tdhoang/examgate/internal/controller"
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/service"
)

type AdminExamController struct {
	examService service.ExamService
	checker     auth.AuthorityChecker
}

func NewAdminExamController(examService service.ExamService, checker auth.AuthorityChecker) *AdminExamController {
	return &AdminExamController{examService: examService, checker: checker}
}

func (c *AdminExamController) caller(ctx *gin.Context) (service.Caller, bool) {
	caller, ok := auth.CallerFromContext(ctx, c.checker)
	if !ok {
		controller.RespondUnauthenticated(ctx)
	}
	return caller, ok
}

// CreateExam godoc
// @Summary (Admin) Create an exam
// @Description Creates an exam in draft status, optionally with its full question and choice set. Every question needs exactly one correct choice.
// @Tags Admin - Exams
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_data body dto.ExamCreateDTO true "Exam payload"
// @Success 201 {object} dto.ExamResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/exams [post]
func (c *AdminExamController) CreateExam(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}

	var req dto.ExamCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateExam: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	exam, err := c.examService.CreateExam(req, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, exam)
}

// UpdateExam godoc
// @Summary (Admin) Update exam metadata
// @Description Updates title, description, duration or publication status. Duration changes only affect future attempts.
// @Tags Admin - Exams
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Param exam_data body dto.ExamUpdateDTO true "Fields to update"
// @Success 200 {object} dto.ExamResponseDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/exams/{exam_id} [put]
func (c *AdminExamController) UpdateExam(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}

	var req dto.ExamUpdateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	exam, err := c.examService.UpdateExam(examID, req, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, exam)
}

// DeleteExam godoc
// @Summary (Admin) Delete an exam
// @Tags Admin - Exams
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/exams/{exam_id} [delete]
func (c *AdminExamController) DeleteExam(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}

	if err := c.examService.DeleteExam(examID, caller); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// AddQuestion godoc
// @Summary (Admin) Add a question to an exam
// @Tags Admin - Exams
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Caller user ID"
// @Param exam_id path int true "Exam ID"
// @Param question_data body dto.QuestionCreateDTO true "Question with choices"
// @Success 201 {object} dto.QuestionResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/exams/{exam_id}/questions [post]
func (c *AdminExamController) AddQuestion(ctx *gin.Context) {
	caller, ok := c.caller(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseIDParam(ctx, "exam_id")
	if !ok {
		return
	}

	var req dto.QuestionCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	question, err := c.examService.AddQuestion(examID, req, caller)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, question)
}
