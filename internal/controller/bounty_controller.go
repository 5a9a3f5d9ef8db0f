package controller

import (
	"errors"
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type BountyController struct {
	BountyService *service.BountyService
}

func NewBountyController(bountyService *service.BountyService) *BountyController {
	return &BountyController{BountyService: bountyService}
}

// @Summary 悬赏列表
// @Tags 悬赏
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /bounties [get]
func (c *BountyController) ListBounties(ctx *gin.Context) {
	bounties, err := c.BountyService.ListActive()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, bounties)
}

type BountySubmissionRequest struct {
	SubmitURL string `json:"submitUrl" binding:"required,url"`
	Note      string `json:"note"`
}

// @Summary 提交悬赏作品
// @Description 参与分随提交入账一次；超出该悬赏的提交上限整体拒绝
// @Tags 悬赏
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "悬赏slug"
// @Param body body BountySubmissionRequest true "作品链接"
// @Success 201 {object} util.Response
// @Router /bounties/{slug}/submissions [post]
func (c *BountyController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req BountySubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.BountyService.Submit(user.UserID, ctx.Param("slug"), req.SubmitURL, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrBountyNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrBountyInactive):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrSubmissionCapExceeded):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, result)
}

// @Summary 悬赏提交列表
// @Tags 悬赏
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "悬赏slug"
// @Success 200 {object} util.Response
// @Router /admin/bounties/{slug}/submissions [get]
func (c *BountyController) ListSubmissions(ctx *gin.Context) {
	submissions, err := c.BountyService.ListSubmissions(ctx.Param("slug"))
	if err != nil {
		if errors.Is(err, util.ErrBountyNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, submissions)
}

type RankAwardRequest struct {
	SubmissionID uint `json:"submissionId" binding:"required"`
	Rank         int  `json:"rank" binding:"required,min=1,max=3"`
}

// @Summary 评定悬赏名次
// @Description 发放名次加成，同一学员同一悬赏最多一次
// @Tags 悬赏
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "悬赏slug"
// @Param body body RankAwardRequest true "提交与名次"
// @Success 200 {object} util.Response
// @Router /admin/bounties/{slug}/rank [post]
func (c *BountyController) AwardRank(ctx *gin.Context) {
	var req RankAwardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.BountyService.AwardRank(ctx.Param("slug"), req.SubmissionID, req.Rank)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrBountyNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrDuplicateSource), errors.Is(err, util.ErrSourceNotEligible):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
