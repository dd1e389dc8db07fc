package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/examgate/internal/dto"
	"github.com/tdhoang/examgate/internal/service"
)

// RespondError maps a typed service error onto its HTTP status. Anything
// else is treated as an internal error.
func RespondError(ctx *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		ctx.JSON(svcErr.Status, dto.ErrorResponse{
			Message:   svcErr.Message,
			Code:      string(svcErr.Code),
			AttemptID: svcErr.AttemptID,
		})
		return
	}
	ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
}

func RespondUnauthenticated(ctx *gin.Context) {
	ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Message: "authentication required",
		Code:    string(service.CodeNotAuthenticated),
	})
}

// ParseIDParam parses a positive integer path parameter, responding with 400
// itself when the value is malformed.
func ParseIDParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid " + name + " format"})
		return 0, false
	}
	return uint(id), true
}

// ParseOptionalUserQuery reads the optional target_user_id filter.
func ParseOptionalUserQuery(ctx *gin.Context) (*uint, bool) {
	raw := ctx.Query("target_user_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid target_user_id format"})
		return nil, false
	}
	userID := uint(id)
	return &userID, true
}
