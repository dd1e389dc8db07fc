package service

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	CodeNotFound           ErrorCode = "not_found"
	CodeNotAuthenticated   ErrorCode = "not_authenticated"
	CodeForbidden          ErrorCode = "forbidden"
	CodeNotPublished       ErrorCode = "exam_not_published"
	CodeAlreadySubmitted   ErrorCode = "attempt_already_submitted"
	CodeExpired            ErrorCode = "attempt_expired"
	CodeNotInProgress      ErrorCode = "attempt_not_in_progress"
	CodeNotSubmitted       ErrorCode = "attempt_not_submitted"
	CodeInvalidAnswer      ErrorCode = "invalid_answer"
	CodePersistenceFailure ErrorCode = "persistence_failure"
)

// Error is the typed error every service operation returns on a validation or
// state failure, carrying the HTTP status the REST layer should map it to.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	// AttemptID is populated when an already-submitted attempt blocks a
	// start, so the client can route to its report.
	AttemptID uint
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func ErrNotFound(message string) *Error {
	return newError(CodeNotFound, http.StatusNotFound, message)
}

func ErrNotAuthenticated() *Error {
	return newError(CodeNotAuthenticated, http.StatusUnauthorized, "authentication required")
}

func ErrForbidden(message string) *Error {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

func ErrNotPublished() *Error {
	return newError(CodeNotPublished, http.StatusForbidden, "the exam is not available for attempts")
}

func ErrAlreadySubmitted(attemptID uint) *Error {
	err := newError(CodeAlreadySubmitted, http.StatusConflict, "attempt has already been submitted")
	err.AttemptID = attemptID
	return err
}

func ErrExpired() *Error {
	return newError(CodeExpired, http.StatusForbidden, "attempt expired")
}

func ErrNotInProgress() *Error {
	return newError(CodeNotInProgress, http.StatusBadRequest, "attempt is not in progress")
}

func ErrNotSubmitted() *Error {
	return newError(CodeNotSubmitted, http.StatusBadRequest, "attempt has not been submitted yet")
}

func ErrInvalidAnswer(message string) *Error {
	return newError(CodeInvalidAnswer, http.StatusBadRequest, message)
}

func ErrPersistence(message string) *Error {
	return newError(CodePersistenceFailure, http.StatusInternalServerError, message)
}

// AsError unwraps a typed service error, if any.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
