package app

import (
	"student_control_backend/internal/config"
	"student_control_backend/internal/middleware"
	"student_control_backend/internal/model"
	"student_control_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/login", c.auth.Login)
	}

	// 缓存管理接口，仅后台角色可用
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.RoleAdmin, model.RoleManager))
	{
		admin.GET("/students", c.student.List)
		admin.GET("/students/:id", c.student.Detail)
		admin.POST("/students/:id/refresh", c.student.Refresh)
		admin.POST("/cache/refresh", c.student.RefreshStep)
		admin.POST("/cache/rebuild", c.student.Rebuild)
		admin.GET("/courses", c.course.List)
	}
}
