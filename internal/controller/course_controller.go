package controller

import (
	"tokengate_backend/internal/service"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// @Summary 课程列表
// @Tags 课程目录
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.ListCourses()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// @Summary 课程详情
// @Description 返回课程与课时、测验题目；正确答案不出网
// @Tags 课程目录
// @Produce json
// @Security ApiKeyAuth
// @Param slug path string true "课程slug"
// @Success 200 {object} util.Response
// @Router /courses/{slug} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CourseService.GetCourse(ctx.Param("slug"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, course)
}
