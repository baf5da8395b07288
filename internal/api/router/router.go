package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imagesvoter/backend/config"
	"imagesvoter/backend/internal/api/handler"
	"imagesvoter/backend/internal/api/middleware"
	"imagesvoter/backend/pkg/jwt"
)

// Deps 路由依赖的 Redis 能力，Redis 不可用时均为 nil
type Deps struct {
	Blacklist middleware.Blacklist
	Limiter   middleware.Limiter
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	limit := middleware.RateLimit(deps.Limiter, cfg.Contest.RateLimit, cfg.Contest.RateLimitWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", limit, h.Auth.Register)
			auth.POST("/login", limit, h.Auth.Login)
		}

		// 参赛端（会话头认证，由 Service 层校验）
		play := v1.Group("/play")
		{
			play.POST("/join", limit, h.Play.Join)
			play.POST("/submissions", limit, h.Play.SubmitImages)
			play.POST("/votes", limit, h.Play.CastVote)
			play.GET("/:code/state", h.Play.GetState)
			play.GET("/:code/results", h.Play.GetResults)
			play.GET("/:code/ws", h.Play.Subscribe)
		}

		// 教师端（需要认证）
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, deps.Blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 班级模块
			classrooms := authorized.Group("/classrooms")
			{
				classrooms.GET("", h.Classroom.ListClassrooms)
				classrooms.POST("", h.Classroom.CreateClassroom)
				classrooms.GET("/:id", h.Classroom.GetClassroom)
				classrooms.PUT("/:id", h.Classroom.RenameClassroom)
				classrooms.DELETE("/:id", h.Classroom.DeleteClassroom)
			}

			// 比赛模块
			contests := authorized.Group("/contests")
			{
				contests.GET("", h.Contest.ListContests)
				contests.POST("", h.Contest.CreateContest)
				contests.GET("/:id", h.Contest.GetContest)
				contests.DELETE("/:id", h.Contest.DeleteContest)
				contests.PUT("/:id/status", h.Contest.AdvanceStatus)
				contests.POST("/:id/submissions", h.Contest.UploadImagePair)
				contests.DELETE("/:id/submissions/:submission_id", h.Contest.DeleteSubmission)
				contests.DELETE("/:id/participants/:participant_id", h.Contest.KickParticipant)
				contests.GET("/:id/results", h.Contest.GetResults)
				contests.GET("/:id/export", h.Export.ExportResults)
			}
		}
	}

	return r
}
