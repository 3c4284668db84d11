package utils

import (
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2025, time.June, 9, 10, 0, 0, 0, time.Local)
}

func TestDateNormalizer_Normalize(t *testing.T) {
	d := DateNormalizer{Now: fixedClock}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"完整日期时间", "2024-01-05 14:32", "2024-01-05"},
		{"带秒的日期时间", "2024-01-05 14:32:10", "2024-01-05"},
		{"纯日期", "2024-01-05", "2024-01-05"},
		{"当天时间", "14:32", "2025-06-09"},
		{"月.日", "03.15", "2025-03-15"},
		{"年.月.日", "23.12.31", "2023-12-31"},
		{"前后空白", "  03.15\n", "2025-03-15"},
		{"空字符串", "", ""},
		{"无法识别", "어제", ""},
		{"单位数月份", "3.15", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Normalize(tt.text); got != tt.want {
				t.Errorf("Normalize(%q) = %q, 期望 %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate_Idempotent(t *testing.T) {
	d := DateNormalizer{Now: fixedClock}
	for _, text := range []string{"2024-01-05 14:32", "14:32", "03.15", "23.12.31", "1999-12-31"} {
		once := d.Normalize(text)
		if twice := d.Normalize(once); twice != once {
			t.Errorf("规范化不幂等: %q -> %q -> %q", text, once, twice)
		}
	}
}

func TestNormalizeDate_TodayUsesLocalClock(t *testing.T) {
	before := time.Now().Format(DateKeyLayout)
	got := NormalizeDate("14:32")
	after := time.Now().Format(DateKeyLayout)

	if got != before && got != after {
		t.Errorf("NormalizeDate(\"14:32\") = %q, 期望今天 %q", got, before)
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		start, end string
		want       bool
	}{
		{"范围内", "2024-01-15", "2024-01-01", "2024-01-31", true},
		{"等于起始", "2024-01-01", "2024-01-01", "2024-01-31", true},
		{"等于结束", "2024-01-31", "2024-01-01", "2024-01-31", true},
		{"早于起始", "2023-12-31", "2024-01-01", "2024-01-31", false},
		{"晚于结束", "2024-02-01", "2024-01-01", "2024-01-31", false},
		{"只有起始", "2030-01-01", "2024-01-01", "", true},
		{"只有结束", "2000-01-01", "", "2024-01-31", true},
		{"无边界", "2024-01-15", "", "", true},
		{"空日期", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InRange(tt.key, tt.start, tt.end); got != tt.want {
				t.Errorf("InRange(%q, %q, %q) = %v, 期望 %v", tt.key, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestIsOlder(t *testing.T) {
	if !IsOlder("2023-12-31", "2024-01-01") {
		t.Error("2023-12-31 应早于 2024-01-01")
	}
	if IsOlder("2024-01-01", "2024-01-01") {
		t.Error("同一天不算更早")
	}
	if IsOlder("2023-12-31", "") {
		t.Error("没有起始日期时不应判定为更早")
	}
	if IsOlder("", "2024-01-01") {
		t.Error("空日期不应判定为更早")
	}
}
