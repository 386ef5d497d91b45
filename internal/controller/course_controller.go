package controller

import (
	"student_control_backend/internal/service"
	"student_control_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	QueryService *service.StudentQueryService
}

func NewCourseController(queryService *service.StudentQueryService) *CourseController {
	return &CourseController{QueryService: queryService}
}

// List godoc
// @Summary 课程下拉选项
// @Tags 学生缓存
// @Produce json
// @Security ApiKeyAuth
// @Router /api/admin/courses [get]
func (ctl *CourseController) List(c *gin.Context) {
	courses, err := ctl.QueryService.Courses(c.Request.Context())
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, courses)
}
