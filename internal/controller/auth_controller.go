package controller

import (
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

type WalletLoginRequest struct {
	Wallet string `json:"wallet" binding:"required"`
	Name   string `json:"name"`
}

// @Summary 钱包登录
// @Description 用已连接的钱包地址换取会话令牌，首次出现自动注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body WalletLoginRequest true "钱包地址"
// @Success 200 {object} util.Response
// @Router /auth/wallet [post]
func (c *AuthController) WalletLogin(ctx *gin.Context) {
	var req WalletLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.AuthService.WalletLogin(req.Wallet, req.Name)
	if err != nil {
		util.Error(ctx, 401, err.Error())
		return
	}

	util.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary 管理员登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body AdminLoginRequest true "邮箱与密码"
// @Success 200 {object} util.Response
// @Router /auth/admin [post]
func (c *AuthController) AdminLogin(ctx *gin.Context) {
	var req AdminLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, err := c.AuthService.AdminLogin(req.Email, req.Password)
	if err != nil {
		util.Error(ctx, 401, err.Error())
		return
	}

	util.Success(ctx, gin.H{"token": token})
}

// @Summary 当前用户信息
// @Tags 认证
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	util.Success(ctx, user)
}
