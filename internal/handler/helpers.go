package handler

import (
	"errors"
	"mime"
	"strconv"

	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/handler/middleware"
	"observe/dashboard/internal/service"
	"observe/dashboard/internal/session"
	"observe/dashboard/pkg/response"
)

var ErrNoSession = errors.New("session not found in context")

func getSessionFromContext(c *gin.Context) (*session.Session, error) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// attachment marks the response as a download named filename.
func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// writeError maps service and Observe errors to the response envelope.
// Observe failures keep their status; unreachable upstream becomes 502.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, action.ErrUnauthenticated), errors.Is(err, session.ErrNotFound):
		response.Unauthorized(c, "not authenticated")
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAdminRequired):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidDescription):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, action.ErrNoPhotoURL):
		response.NotFound(c, err.Error())
	default:
		var fe *fetch.Error
		if errors.As(err, &fe) {
			if fe.StatusCode == 0 {
				response.Status(c, 0, "observe api unreachable")
				return
			}
			response.Status(c, fe.StatusCode, fe.Error())
			return
		}
		response.InternalError(c, "internal error")
	}
}

func pageFromQuery(c *gin.Context) (action.Page, error) {
	return action.ParsePage(c.Request.URL.Query())
}

func intQuery(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
