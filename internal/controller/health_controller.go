package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	LMSDB *gorm.DB
}

func NewHealthController(db, lmsDB *gorm.DB) *HealthController {
	return &HealthController{DB: db, LMSDB: lmsDB}
}

// HealthCheck godoc
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Router /api/health [get]
func (ctl *HealthController) HealthCheck(c *gin.Context) {
	status := gin.H{"status": "ok", "database": "ok", "lms_database": "ok"}
	code := http.StatusOK

	if sqlDB, err := ctl.DB.DB(); err != nil || sqlDB.Ping() != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	if sqlDB, err := ctl.LMSDB.DB(); err != nil || sqlDB.Ping() != nil {
		status["lms_database"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}
