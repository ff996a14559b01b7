package handler

import (
	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/service"
	"observe/dashboard/pkg/response"
)

type UserHandler struct {
	dashboardService service.DashboardService
}

func NewUserHandler(dashboardService service.DashboardService) *UserHandler {
	return &UserHandler{dashboardService: dashboardService}
}

type SetRoleRequest struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

func (h *UserHandler) List(c *gin.Context) {
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

	users, err := h.dashboardService.ListUsers(c.Request.Context(), s, action.UserQuery{
		Page:     page,
		Username: c.Query("username"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessList(c, users.Results, users.Meta)
}

// SetRole promotes or demotes a user.
func (h *UserHandler) SetRole(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.dashboardService.SetUserRole(c.Request.Context(), s, c.Param("id"), *req.IsAdmin); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"osmId": c.Param("id"), "isAdmin": *req.IsAdmin})
}
