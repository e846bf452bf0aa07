package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON shape of every diagnostics response.
type Body struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   *Problem `json:"error,omitempty"`
}

type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Fail aborts the handler chain with a problem body.
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Body{Error: &Problem{Code: code, Message: message}})
}

func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, "NOT_FOUND", message)
}
