package app

import (
	"tokengate_backend/docs"
	"tokengate_backend/internal/config"
	"tokengate_backend/internal/middleware"
	"tokengate_backend/internal/model"
	"tokengate_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.Check)
		public.POST("/auth/wallet", c.auth.WalletLogin)
		public.POST("/auth/admin", c.auth.AdminLogin)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 课程目录
		authGroup.GET("/courses", c.course.ListCourses)
		authGroup.GET("/courses/:slug", c.course.GetCourse)

		// 学习进度
		authGroup.GET("/courses/:slug/progress", c.progression.GetProgress)
		authGroup.GET("/courses/:slug/progress/ws", c.progression.SubscribeProgress)
		authGroup.POST("/courses/:slug/lessons/:lessonSlug/quiz", c.progression.SubmitQuiz)

		// 经验值
		authGroup.GET("/xp", c.xp.GetTotal)
		authGroup.GET("/xp/ledger", c.xp.GetLedger)
		authGroup.GET("/xp/leaderboard", c.xp.GetLeaderboard)

		// 悬赏
		authGroup.GET("/bounties", c.bounty.ListBounties)
		authGroup.POST("/bounties/:slug/submissions", c.bounty.Submit)
	}

	// 管理员接口
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		adminGroup.POST("/progress/reset", c.admin.ResetProgress)
		adminGroup.GET("/bounties/:slug/submissions", c.bounty.ListSubmissions)
		adminGroup.POST("/bounties/:slug/rank", c.bounty.AwardRank)
	}
}
