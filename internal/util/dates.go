package util

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var mysqlDatetime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// ToTimestamp 将任意来源的日期值统一转为UNIX epoch。
// 数字字符串按epoch处理，MySQL datetime按站点时区解析，无法识别时返回 0。
func ToTimestamp(value string, loc *time.Location) int64 {
	if value == "" {
		return 0
	}

	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ts
	}

	if mysqlDatetime.MatchString(value) {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc); err == nil {
			return t.Unix()
		}
	}

	// 其他字符串格式，尽力解析
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.Unix()
		}
	}

	return 0
}

// FormatDateSafely 按站点时区把epoch格式化为展示字符串。
// 0或负值返回 N/A，消费方不再做任何日期处理。
func FormatDateSafely(timestamp int64, layout string, loc *time.Location) string {
	if timestamp <= 0 {
		return "N/A"
	}
	return time.Unix(timestamp, 0).In(loc).Format(layout)
}

// MonthWindow 计算 YYYY-MM 月份的首末时刻（闭区间），按实际天数取月末
func MonthWindow(yearMonth string, loc *time.Location) (int64, int64, error) {
	t, err := time.ParseInLocation("2006-01", yearMonth, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", yearMonth, err)
	}

	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	// day 0 归一化为上个月最后一天
	end := time.Date(t.Year(), t.Month()+1, 0, 23, 59, 59, 0, loc)

	return start.Unix(), end.Unix(), nil
}
