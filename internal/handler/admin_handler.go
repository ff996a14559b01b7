package handler

import (
	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/repository"
	"observe/dashboard/internal/service"
	"observe/dashboard/pkg/response"
)

type AdminHandler struct {
	dashboardService service.DashboardService
}

func NewAdminHandler(dashboardService service.DashboardService) *AdminHandler {
	return &AdminHandler{dashboardService: dashboardService}
}

// ListAudit returns the audit trail, newest first.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, total, err := h.dashboardService.ListAudit(c.Request.Context(), s, repository.AuditFilter{
		ActorID: c.Query("actor"),
		Entity:  c.Query("entity"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessList(c, entries, gin.H{"count": len(entries), "totalCount": total})
}
