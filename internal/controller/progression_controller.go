package controller

import (
	"errors"
	"net/http"
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProgressionController struct {
	ProgressionService *service.ProgressionService
	Hub                *service.ProgressHub
}

func NewProgressionController(progressionService *service.ProgressionService, hub *service.ProgressHub) *ProgressionController {
	return &ProgressionController{
		ProgressionService: progressionService,
		Hub:                hub,
	}
}

// @Summary 课程进度
// @Description 返回学员在该课程的完整状态向量，并按当前凭证快照推进解锁
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "课程slug"
// @Success 200 {object} util.Response
// @Router /courses/{slug}/progress [get]
func (c *ProgressionController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.ProgressionService.GetProgress(
		ctx.Request.Context(), user.UserID, user.Wallet,
		ctx.Param("slug"), ctx.GetHeader("X-Session-Id"))
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

type QuizSubmissionRequest struct {
	// questionID -> optionID，未作答的题按答错计
	Answers map[uint]uint `json:"answers" binding:"required"`
}

// @Summary 提交测验答案
// @Description 对 Unlocked 课时评分并驱动状态机；已完成课时允许复习重考但不重复计分
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "课程slug"
// @Param lessonSlug path string true "课时slug"
// @Param body body QuizSubmissionRequest true "答案"
// @Success 200 {object} util.Response
// @Router /courses/{slug}/lessons/{lessonSlug}/quiz [post]
func (c *ProgressionController) SubmitQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req QuizSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	outcome, err := c.ProgressionService.SubmitQuiz(
		ctx.Request.Context(), user.UserID, user.Wallet,
		ctx.Param("slug"), ctx.Param("lessonSlug"),
		req.Answers, ctx.GetHeader("X-Session-Id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidTransition):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, gorm.ErrRecordNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, outcome)
}

// @Summary 订阅进度推送
// @Description websocket 流：同一学员其他会话的写入到达时整体推送新向量
// @Tags 学习进度
// @Security ApiKeyAuth
// @Param slug path string true "课程slug"
// @Param courseId query int true "课程ID"
// @Router /courses/{slug}/progress/ws [get]
func (c *ProgressionController) SubscribeProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	course, err := c.ProgressionService.Catalog.GetCourse(ctx.Param("slug"))
	if err != nil {
		util.NotFound(ctx)
		return
	}

	sessionID := service.ServeWs(c.Hub, ctx.Writer, ctx.Request, user.UserID, course.ID)
	if sessionID == "" {
		ctx.Status(http.StatusBadRequest)
	}
}
