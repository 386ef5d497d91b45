package repository

import (
	"fmt"
	"strings"
	"student_control_backend/internal/model"
	"student_control_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StudentFilter 查询与增量刷新共用的筛选条件，全部可选，AND组合
type StudentFilter struct {
	Search          string // 姓名/邮箱子串，不区分大小写
	CourseID        uint   // 在读课程包含该ID
	LastAccessMonth string // YYYY-MM
}

func (f StudentFilter) Empty() bool {
	return f.Search == "" && f.CourseID == 0 && f.LastAccessMonth == ""
}

// StudentQuery 列表查询参数
type StudentQuery struct {
	StudentFilter
	OrderBy string // name | registration_date | last_access
	Order   string // asc | desc
	Page    int
	PerPage int
}

var sortColumns = map[string]string{
	"name":              "full_name",
	"registration_date": "registration_date",
	"last_access":       "last_access_timestamp",
}

type CacheRepository struct {
	DB  *gorm.DB
	loc *time.Location
}

func NewCacheRepository(db *gorm.DB, loc *time.Location) *CacheRepository {
	return &CacheRepository{DB: db, loc: loc}
}

func (r *CacheRepository) HasTable() bool {
	return r.DB.Migrator().HasTable(&model.StudentCache{})
}

// 历史版本遗留列，迁移时移除
var deprecatedColumns = []string{"total_lesson_time", "average_lesson_time"}

// EnsureSchema 自愈式建表/补列/删除废弃列，可重复执行。
// 只动自己关心的列，其余列的数据不受影响。
func (r *CacheRepository) EnsureSchema() error {
	m := r.DB.Migrator()

	if !m.HasTable(&model.StudentCache{}) {
		return m.CreateTable(&model.StudentCache{})
	}

	for _, field := range []string{
		"UserID",
		"FullName",
		"Email",
		"Username",
		"RegistrationDate",
		"LastAccessTimestamp",
		"CoursesData",
		"CourseHistoryData",
		"QuizzesData",
		"LessonsData",
		"AllLessonsCount",
		"AllQuizzesCount",
		"UpdatedAt",
	} {
		if !m.HasColumn(&model.StudentCache{}, field) {
			if err := m.AddColumn(&model.StudentCache{}, field); err != nil {
				return err
			}
		}
	}

	for _, column := range deprecatedColumns {
		if m.HasColumn(&model.StudentCache{}, column) {
			if err := m.DropColumn(&model.StudentCache{}, column); err != nil {
				return err
			}
		}
	}

	return nil
}

// Upsert 按user_id整行覆盖，不存在则插入。绝不做字段级补丁
func (r *CacheRepository) Upsert(rec *model.StudentCache) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// Get 点查。表或行不存在都返回nil而非错误
func (r *CacheRepository) Get(studentID uint) (*model.StudentCache, error) {
	if !r.HasTable() {
		return nil, nil
	}

	var rec model.StudentCache
	err := r.DB.Where("user_id = ?", studentID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *CacheRepository) Delete(studentID uint) error {
	if !r.HasTable() {
		return nil
	}
	return r.DB.Where("user_id = ?", studentID).Delete(&model.StudentCache{}).Error
}

func (r *CacheRepository) Truncate() error {
	if !r.HasTable() {
		return nil
	}
	return r.DB.Exec("TRUNCATE TABLE " + model.StudentCache{}.TableName()).Error
}

func (r *CacheRepository) applyFilter(tx *gorm.DB, f StudentFilter) *gorm.DB {
	if f.Search != "" {
		like := "%" + f.Search + "%"
		tx = tx.Where("full_name LIKE ? OR email LIKE ?", like, like)
	}

	if f.CourseID != 0 {
		// 序列化集合内匹配 "course_id":N, —— course_id是条目首字段且后续
		// 必有逗号，子串即可精确命中，存储层无需理解JSON
		tx = tx.Where("courses_data LIKE ?", fmt.Sprintf(`%%"course_id":%d,%%`, f.CourseID))
	}

	if f.LastAccessMonth != "" {
		start, end, err := util.MonthWindow(f.LastAccessMonth, r.loc)
		if err == nil {
			tx = tx.Where("last_access_timestamp BETWEEN ? AND ?", start, end)
		}
		// 非法月份参数按无此过滤处理，不报错
	}

	return tx
}

// OrderClause 排序表达式：未知字段回退姓名升序；last_access排序时
// 从未访问(0)的行固定排在最后；id升序兜底保证稳定分页
func OrderClause(orderBy, order string) string {
	column, ok := sortColumns[orderBy]
	if !ok {
		column = "full_name"
		order = "asc"
	}

	direction := "ASC"
	if strings.EqualFold(order, "desc") {
		direction = "DESC"
	}

	if column == "last_access_timestamp" {
		return fmt.Sprintf("last_access_timestamp = 0, last_access_timestamp %s, id ASC", direction)
	}
	return fmt.Sprintf("%s %s, id ASC", column, direction)
}

// NormalizePage 页码从1起，非法值一律回退到1
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Query 过滤+排序+分页，同时返回过滤后总数（分页前）
func (r *CacheRepository) Query(q StudentQuery) ([]model.StudentCache, int64, error) {
	if !r.HasTable() {
		return []model.StudentCache{}, 0, nil
	}

	if q.PerPage <= 0 {
		q.PerPage = 50
	}
	page := NormalizePage(q.Page)

	base := r.applyFilter(r.DB.Model(&model.StudentCache{}), q.StudentFilter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.StudentCache
	err := r.applyFilter(r.DB.Model(&model.StudentCache{}), q.StudentFilter).
		Order(OrderClause(q.OrderBy, q.Order)).
		Offset((page - 1) * q.PerPage).
		Limit(q.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// QueryIDs 过滤后的全部学生ID（不分页），供增量刷新圈定目标
func (r *CacheRepository) QueryIDs(f StudentFilter) ([]uint, error) {
	if !r.HasTable() {
		return []uint{}, nil
	}

	var ids []uint
	err := r.applyFilter(r.DB.Model(&model.StudentCache{}), f).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
