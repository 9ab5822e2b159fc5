package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/logger"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries the stable error code clients branch on.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data inside a successful envelope.
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

// SuccessMessage writes a successful envelope that carries only a message.
func SuccessMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: true, Message: message})
}

// Error aborts the chain and writes the envelope for err. Anything that is not an AppError
// becomes INTERNAL_SERVER_ERROR. Client mistakes are logged at debug; server-side failures
// are logged with their internal cause, which never reaches the body.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternalServer
	}
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	logFailure(c, status, appErr, err)

	c.AbortWithStatusJSON(status, Response{
		Message: appErr.Message,
		Error:   &ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	})
}

func logFailure(c *gin.Context, status int, appErr *appErrors.AppError, cause error) {
	log := logger.WithModule("http")
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", appErr.Code),
	}
	// The route template, never the raw path: reset tokens travel as path parameters.
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	fields = append(fields, zap.String("route", route))
	if c.Request != nil {
		fields = append(fields, zap.String("method", c.Request.Method))
	}

	if status < http.StatusInternalServerError {
		log.Debug("request rejected", fields...)
		return
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	log.Error("request failed", fields...)
}
