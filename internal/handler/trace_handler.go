package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/service"
	"observe/dashboard/pkg/response"
)

type TraceHandler struct {
	dashboardService service.DashboardService
}

func NewTraceHandler(dashboardService service.DashboardService) *TraceHandler {
	return &TraceHandler{dashboardService: dashboardService}
}

type UpdateDescriptionRequest struct {
	Description *string `json:"description" binding:"required"`
}

func (h *TraceHandler) List(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	q, err := traceQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.dashboardService.ListTraces(c.Request.Context(), s, q)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessList(c, page.Results, page.Meta)
}

func (h *TraceHandler) Get(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	trace, err := h.dashboardService.GetTrace(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trace)
}

func (h *TraceHandler) Update(c *gin.Context) {
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

	trace, err := h.dashboardService.UpdateTraceDescription(c.Request.Context(), s, c.Param("id"), *req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trace)
}

func (h *TraceHandler) Delete(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	if err := h.dashboardService.DeleteTrace(c.Request.Context(), s, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// JOSM returns the remote-control link that loads the trace into JOSM.
func (h *TraceHandler) JOSM(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	response.Success(c, gin.H{"url": h.dashboardService.JOSMLink(s, c.Param("id"))})
}

func (h *TraceHandler) GPX(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	id := c.Param("id")
	var buf bytes.Buffer
	if err := h.dashboardService.ExportTraceGPX(c.Request.Context(), s, id, &buf); err != nil {
		writeError(c, err)
		return
	}
	attachment(c, id+".gpx")
	c.Data(http.StatusOK, "application/gpx+xml", buf.Bytes())
}

func traceQuery(c *gin.Context) (action.TraceQuery, error) {
	page, err := pageFromQuery(c)
	if err != nil {
		return action.TraceQuery{}, err
	}
	lengthMin, err := intQuery(c, "lengthMin")
	if err != nil {
		return action.TraceQuery{}, err
	}
	lengthMax, err := intQuery(c, "lengthMax")
	if err != nil {
		return action.TraceQuery{}, err
	}
	return action.TraceQuery{
		Page:      page,
		Username:  c.Query("username"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		LengthMin: lengthMin,
		LengthMax: lengthMax,
	}, nil
}
