package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority issue 优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities 全部优先级，按从低到高排列
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid 是否为合法优先级
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority 解析优先级字符串（忽略大小写与首尾空白）
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", Validationf("未知的优先级 %q", s)
	}
	return p, nil
}

// Hours 预估工时（小时）
type Hours float64

// String 展示格式，如 6h、1.5h
func (h Hours) String() string {
	return strconv.FormatFloat(float64(h), 'f', -1, 64) + "h"
}

// ParseHours 解析 "6h"、"6" 或 "1.5h" 形式的工时
func ParseHours(s string) (Hours, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "h"), "H")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, Validationf("无法解析工时 %q", s)
	}
	return Hours(v), nil
}

// UnmarshalJSON 兼容带单位的字符串形式
func (h *Hours) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseHours(s)
		if err != nil {
			return err
		}
		*h = v
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*h = Hours(v)
	return nil
}

// GeneratedIssue 由会议记录生成的工作 issue
type GeneratedIssue struct {
	ID             string        `json:"id" validate:"required"`
	Title          string        `json:"title" validate:"required"`
	Description    string        `json:"description"`
	Priority       Priority      `json:"priority" validate:"required,oneof=critical high medium low"`
	Assignee       string        `json:"assignee"`
	EstimatedHours Hours         `json:"estimatedHours" validate:"gte=0"`
	Tags           []string      `json:"tags"`
	Source         Source        `json:"source"`
	CreatedAt      time.Time     `json:"createdAt"`
	DueDate        string        `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	MeetingRecord  MeetingRecord `json:"meetingRecord"`
}

// Validate 校验 issue 字段
func (i *GeneratedIssue) Validate() error {
	if err := validate.Struct(i); err != nil {
		return describe(err)
	}
	return nil
}

// Clone 深拷贝 issue（包括所附带的会议记录）
func (i *GeneratedIssue) Clone() GeneratedIssue {
	c := *i
	c.Tags = append([]string(nil), i.Tags...)
	c.MeetingRecord = i.MeetingRecord.Clone()
	return c
}

// NewIssueID 生成 issue ID
func NewIssueID() string {
	return uuid.NewString()
}

// DateAfter 返回 now 之后 days 天的 YYYY-MM-DD 日期
func DateAfter(now time.Time, days int) string {
	return now.AddDate(0, 0, days).Format(time.DateOnly)
}

// FormatCreatedAt 以韩语区域格式展示时间，如 "2024. 7. 2. 오후 2:30:00"
func FormatCreatedAt(t time.Time) string {
	ampm := "오전"
	if t.Hour() >= 12 {
		ampm = "오후"
	}
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d. %d. %d. %s %d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), ampm, hour, t.Minute(), t.Second())
}
