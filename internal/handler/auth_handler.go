package handler

import (
	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/service"
	"observe/dashboard/pkg/response"
)

type AuthHandler struct {
	dashboardService service.DashboardService
}

func NewAuthHandler(dashboardService service.DashboardService) *AuthHandler {
	return &AuthHandler{dashboardService: dashboardService}
}

type LoginRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

// Login exchanges an Observe access token for a dashboard session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.dashboardService.Login(c.Request.Context(), req.AccessToken)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	if err := h.dashboardService.Logout(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	s, err := getSessionFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid session context")
		return
	}
	profile, err := h.dashboardService.Profile(s)
	if err != nil {
		writeError(c, err)
		return
	}
	profile.AccessToken = ""
	response.Success(c, profile)
}
