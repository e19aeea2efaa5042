package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Error codes.
const (
	CodeBadRequest      = "bad_request"
	CodeInvalidAnswer   = "invalid_answer"
	CodeQuizIncomplete  = "quiz_incomplete"
	CodeInvalidPeriod   = "invalid_period"
	CodeNotFound        = "not_found"
	CodeInProgress      = "generation_in_progress"
	CodePersistence     = "persistence_error"
	CodePersistDisabled = "persistence_disabled"
)

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
