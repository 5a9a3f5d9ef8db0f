package controller

import (
	"errors"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminController struct {
	ProgressionService *service.ProgressionService
	UserRepo           *repository.UserRepository
}

func NewAdminController(progressionService *service.ProgressionService, userRepo *repository.UserRepository) *AdminController {
	return &AdminController{
		ProgressionService: progressionService,
		UserRepo:           userRepo,
	}
}

type ResetProgressRequest struct {
	UserID     uint   `json:"userId" binding:"required"`
	CourseSlug string `json:"courseSlug" binding:"required"`
}

// @Summary 重置学员进度
// @Description 唯一的回退通道：整个向量从头重建，尝试序号递增，历史流水保留
// @Tags 管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ResetProgressRequest true "学员与课程"
// @Success 200 {object} util.Response
// @Router /admin/progress/reset [post]
func (c *AdminController) ResetProgress(ctx *gin.Context) {
	var req ResetProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	target, err := c.UserRepo.FindByID(req.UserID)
	if err != nil {
		util.NotFound(ctx)
		return
	}

	view, err := c.ProgressionService.Reset(
		ctx.Request.Context(), target.ID, target.WalletAddress, req.CourseSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, view)
}
