package controller

import (
	"strconv"
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type XPController struct {
	XPService *service.XPService
}

func NewXPController(xpService *service.XPService) *XPController {
	return &XPController{XPService: xpService}
}

// @Summary 经验值总额
// @Description 从流水折算，不存在独立的余额字段
// @Tags 经验值
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /xp [get]
func (c *XPController) GetTotal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	total, err := c.XPService.Total(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"total": total})
}

// @Summary 经验值流水
// @Tags 经验值
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /xp/ledger [get]
func (c *XPController) GetLedger(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	entries, err := c.XPService.Entries(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 排行榜
// @Tags 经验值
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "榜单长度" default(20)
// @Success 200 {object} util.Response
// @Router /xp/leaderboard [get]
func (c *XPController) GetLeaderboard(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	leaderboard, err := c.XPService.Leaderboard(limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, leaderboard)
}
