package handler

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/service"
	"observe/dashboard/pkg/response"
)

type PhotoHandler struct {
	dashboardService service.DashboardService
}

func NewPhotoHandler(dashboardService service.DashboardService) *PhotoHandler {
	return &PhotoHandler{dashboardService: dashboardService}
}

func (h *PhotoHandler) List(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	page, err := pageFromQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	photos, err := h.dashboardService.ListPhotos(c.Request.Context(), s, action.PhotoQuery{
		Page:           page,
		Username:       c.Query("username"),
		StartDate:      c.Query("startDate"),
		EndDate:        c.Query("endDate"),
		OsmElementType: c.Query("osmElementType"),
		OsmElementID:   c.Query("osmElementId"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessList(c, photos.Results, photos.Meta)
}

func (h *PhotoHandler) Get(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	photo, err := h.dashboardService.GetPhoto(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, photo)
}

func (h *PhotoHandler) Update(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	var req UpdateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	photo, err := h.dashboardService.UpdatePhotoDescription(c.Request.Context(), s, c.Param("id"), *req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, photo)
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	if err := h.dashboardService.DeletePhoto(c.Request.Context(), s, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *PhotoHandler) Download(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	var buf bytes.Buffer
	name, err := h.dashboardService.DownloadPhoto(c.Request.Context(), s, c.Param("id"), &buf)
	if err != nil {
		writeError(c, err)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment(c, name)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
