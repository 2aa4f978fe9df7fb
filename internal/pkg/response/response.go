// Package response writes the {code, message, data} envelope every notes API
// route answers with. Failures keep HTTP 200 and put an errcode value in
// code; clients branch on code, never on status.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/notesrag/internal/pkg/errcode"
)

// bizError carries an errcode value through proxyutil, which reads Code().
type bizError struct {
	code int
	msg  string
}

func (e *bizError) Error() string {
	return e.msg
}

func (e *bizError) Code() uint32 {
	return uint32(e.code)
}

// Success answers with code 0 and data.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error answers with code and message and aborts the remaining handlers.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, &bizError{code: code, msg: message})
}

// Unauthorized rejects a request that carries no usable student token.
func Unauthorized(c *gin.Context, reason string) {
	Error(c, errcode.ErrUnauthorized, reason)
}

// TooMany rejects a request the rate limiter refused.
func TooMany(c *gin.Context) {
	Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
}
