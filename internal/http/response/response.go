// Package response writes the JSON bodies of the ops endpoints.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is what a failed probe or ops call returns under "error".
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// RespondError aborts the chain. A nil err reports the status text.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: ErrorBody{Code: code, Message: msg}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
