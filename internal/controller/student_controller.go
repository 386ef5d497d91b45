package controller

import (
	"errors"
	"strconv"
	"student_control_backend/internal/repository"
	"student_control_backend/internal/service"
	"student_control_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// StudentController 学生缓存的查询与刷新接口
type StudentController struct {
	QueryService   *service.StudentQueryService
	RefreshService *service.RefreshService
}

func NewStudentController(queryService *service.StudentQueryService, refreshService *service.RefreshService) *StudentController {
	return &StudentController{
		QueryService:   queryService,
		RefreshService: refreshService,
	}
}

func filterFromQuery(c *gin.Context) repository.StudentFilter {
	return repository.StudentFilter{
		Search:          c.Query("search"),
		CourseID:        util.MustParseUint(c.Query("course_id")),
		LastAccessMonth: c.Query("last_access_month"),
	}
}

// List godoc
// @Summary 学生列表
// @Description 支持搜索、课程、最后访问月份过滤，排序与分页
// @Tags 学生缓存
// @Produce json
// @Security ApiKeyAuth
// @Param search query string false "姓名或邮箱子串"
// @Param course_id query int false "在读课程ID"
// @Param last_access_month query string false "YYYY-MM"
// @Param orderby query string false "name|registration_date|last_access" default(name)
// @Param order query string false "asc|desc" default(asc)
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页条数" default(50)
// @Router /api/admin/students [get]
func (ctl *StudentController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	q := repository.StudentQuery{
		StudentFilter: filterFromQuery(c),
		OrderBy:       c.DefaultQuery("orderby", "name"),
		Order:         c.DefaultQuery("order", "asc"),
		Page:          page,
		PerPage:       perPage,
	}

	items, total, err := ctl.QueryService.List(q)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, util.PageResponse{
		List:  items,
		Total: total,
		Page:  repository.NormalizePage(page),
		Limit: q.PerPage,
	})
}

// Detail godoc
// @Summary 学生缓存明细
// @Tags 学生缓存
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "学生ID"
// @Router /api/admin/students/{id} [get]
func (ctl *StudentController) Detail(c *gin.Context) {
	studentID := util.MustParseUint(c.Param("id"))
	if studentID == 0 {
		util.BadRequest(c, "invalid student id")
		return
	}

	rec, err := ctl.QueryService.Detail(studentID)
	if err != nil {
		if errors.Is(err, util.ErrStudentNotFound) {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, rec)
}

// Refresh godoc
// @Summary 强制刷新单个学生
// @Description 删除现有缓存行后同步重算，返回耗时
// @Tags 学生缓存
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "学生ID"
// @Router /api/admin/students/{id}/refresh [post]
func (ctl *StudentController) Refresh(c *gin.Context) {
	studentID := util.MustParseUint(c.Param("id"))
	if studentID == 0 {
		util.BadRequest(c, "invalid student id")
		return
	}

	result, err := ctl.RefreshService.ForceRefresh(c.Request.Context(), studentID)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, result)
}

type refreshStepRequest struct {
	Offset          int    `json:"offset"`
	Search          string `json:"search"`
	CourseID        uint   `json:"course_id"`
	LastAccessMonth string `json:"last_access_month"`
}

// RefreshStep godoc
// @Summary 增量刷新一步
// @Description 刷新目标集合中从offset起的一小批，客户端循环调用直到done
// @Tags 学生缓存
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body refreshStepRequest true "进度与过滤条件"
// @Router /api/admin/cache/refresh [post]
func (ctl *StudentController) RefreshStep(c *gin.Context) {
	var req refreshStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "invalid refresh payload")
		return
	}

	progress, err := ctl.RefreshService.RefreshStep(c.Request.Context(), req.Offset, repository.StudentFilter{
		Search:          req.Search,
		CourseID:        req.CourseID,
		LastAccessMonth: req.LastAccessMonth,
	})
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, progress)
}

// Rebuild godoc
// @Summary 全量重建缓存
// @Description 清空缓存表后按批重建全部学生，同步执行
// @Tags 学生缓存
// @Produce json
// @Security ApiKeyAuth
// @Router /api/admin/cache/rebuild [post]
func (ctl *StudentController) Rebuild(c *gin.Context) {
	total, failed, err := ctl.RefreshService.RebuildAll(c.Request.Context())
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, gin.H{
		"total":  total,
		"failed": failed,
	})
}
