package repository

import (
	"fmt"
	"student_control_backend/internal/model"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *CacheRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StudentCache{}))

	return NewCacheRepository(db, time.UTC)
}

func seedStudent(t *testing.T, repo *CacheRepository, id uint, name, email, courses string, lastAccess int64) {
	t.Helper()
	require.NoError(t, repo.Upsert(&model.StudentCache{
		UserID:              id,
		FullName:            name,
		Email:               email,
		CoursesData:         courses,
		LastAccessTimestamp: lastAccess,
		UpdatedAt:           time.Now(),
	}))
}

func queriedIDs(rows []model.StudentCache) []uint {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids
}

func TestQueryPagination(t *testing.T) {
	repo := newTestRepo(t)
	for i := 1; i <= 75; i++ {
		seedStudent(t, repo, uint(i),
			fmt.Sprintf("Student %03d", i),
			fmt.Sprintf("s%03d@example.com", i),
			"", 0)
	}

	seen := make(map[uint]bool)
	for _, tc := range []struct {
		page    int
		wantLen int
	}{
		{1, 30},
		{2, 30},
		{3, 15},
		{4, 0},
	} {
		rows, total, err := repo.Query(StudentQuery{Page: tc.page, PerPage: 30})
		require.NoError(t, err)

		// 每一页的total都是分页前的命中总数
		assert.Equal(t, int64(75), total, "page %d", tc.page)
		assert.Len(t, rows, tc.wantLen, "page %d", tc.page)

		for _, id := range queriedIDs(rows) {
			assert.False(t, seen[id], "student %d appeared on more than one page", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 75)
}

func TestQueryMonthBoundariesInclusive(t *testing.T) {
	repo := newTestRepo(t)
	loc := time.UTC

	ts := func(y int, m time.Month, d, h, min, s int) int64 {
		return time.Date(y, m, d, h, min, s, 0, loc).Unix()
	}

	seedStudent(t, repo, 1, "Before", "b@example.com", "", ts(2024, time.February, 29, 23, 59, 59))
	seedStudent(t, repo, 2, "First Instant", "f@example.com", "", ts(2024, time.March, 1, 0, 0, 0))
	seedStudent(t, repo, 3, "Last Instant", "l@example.com", "", ts(2024, time.March, 31, 23, 59, 59))
	seedStudent(t, repo, 4, "After", "a@example.com", "", ts(2024, time.April, 1, 0, 0, 0))

	rows, total, err := repo.Query(StudentQuery{
		StudentFilter: StudentFilter{LastAccessMonth: "2024-03"},
		PerPage:       10,
	})
	require.NoError(t, err)

	// 月份窗口闭区间：首末时刻都命中，前后一秒都不命中
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []uint{2, 3}, queriedIDs(rows))

	// 非法月份参数按无此过滤处理
	rows, total, err = repo.Query(StudentQuery{
		StudentFilter: StudentFilter{LastAccessMonth: "2024-13"},
		PerPage:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, rows, 4)
}

func TestQueryCourseMembership(t *testing.T) {
	repo := newTestRepo(t)

	seedStudent(t, repo, 1, "In Seven", "s7@example.com",
		`[{"course_id":7,"course_name":"Go Basics"}]`, 0)
	seedStudent(t, repo, 2, "In Seventy", "s70@example.com",
		`[{"course_id":70,"course_name":"Other"}]`, 0)
	seedStudent(t, repo, 3, "No Courses", "none@example.com", "", 0)

	// "course_id":7, 的尾逗号保证不会误中 70
	rows, total, err := repo.Query(StudentQuery{
		StudentFilter: StudentFilter{CourseID: 7},
		PerPage:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{1}, queriedIDs(rows))

	rows, total, err = repo.Query(StudentQuery{
		StudentFilter: StudentFilter{CourseID: 70},
		PerPage:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{2}, queriedIDs(rows))
}

func TestQuerySearch(t *testing.T) {
	repo := newTestRepo(t)

	seedStudent(t, repo, 1, "Ana Silva", "ana@example.com", "", 0)
	seedStudent(t, repo, 2, "Bruno Costa", "bruno@example.org", "", 0)

	rows, total, err := repo.Query(StudentQuery{
		StudentFilter: StudentFilter{Search: "SILVA"},
		PerPage:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{1}, queriedIDs(rows))

	// 子串同样匹配邮箱
	rows, total, err = repo.Query(StudentQuery{
		StudentFilter: StudentFilter{Search: "bruno@"},
		PerPage:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{2}, queriedIDs(rows))
}

func TestQueryLastAccessZerosOrderLast(t *testing.T) {
	repo := newTestRepo(t)

	seedStudent(t, repo, 1, "Mid", "m@example.com", "", 100)
	seedStudent(t, repo, 2, "Never", "n@example.com", "", 0)
	seedStudent(t, repo, 3, "Recent", "r@example.com", "", 200)

	rows, _, err := repo.Query(StudentQuery{OrderBy: "last_access", Order: "desc", PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1, 2}, queriedIDs(rows))

	// 从未访问的行在两个方向下都排在最后
	rows, _, err = repo.Query(StudentQuery{OrderBy: "last_access", Order: "asc", PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3, 2}, queriedIDs(rows))
}

func TestQueryIDsFiltered(t *testing.T) {
	repo := newTestRepo(t)

	seedStudent(t, repo, 5, "Ana Silva", "ana@example.com", "", 0)
	seedStudent(t, repo, 9, "Ana Souza", "souza@example.com", "", 0)
	seedStudent(t, repo, 7, "Bruno Costa", "bruno@example.org", "", 0)

	ids, err := repo.QueryIDs(StudentFilter{Search: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []uint{5, 9}, ids)
}

func TestUpsertOverwritesWholeRow(t *testing.T) {
	repo := newTestRepo(t)

	seedStudent(t, repo, 1, "Old Name", "old@example.com",
		`[{"course_id":7,"course_name":"Go"}]`, 100)
	seedStudent(t, repo, 1, "New Name", "new@example.com", "", 0)

	rec, err := repo.Get(1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "New Name", rec.FullName)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.Empty(t, rec.CoursesData)
	assert.Equal(t, int64(0), rec.LastAccessTimestamp)

	var count int64
	require.NoError(t, repo.DB.Model(&model.StudentCache{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
