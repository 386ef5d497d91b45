package controller

import (
	"student_control_backend/internal/service"
	"student_control_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 管理员登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body loginRequest true "登录凭证"
// @Router /api/login [post]
func (ctl *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "invalid login payload")
		return
	}

	token, err := ctl.AuthService.Login(req.Email, req.Password)
	if err != nil {
		util.Unauthorized(c)
		return
	}

	util.Success(c, gin.H{"token": token})
}
