package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceType 会议记录/issue 的来源
type SourceType string

const (
	SourceThread SourceType = "thread"
	SourceFile   SourceType = "file"
	SourceVoice  SourceType = "voice"
	SourceText   SourceType = "text"
)

// Source issue 与会议记录的来源描述
type Source struct {
	Type          SourceType `json:"type"`
	Reference     string     `json:"reference"`
	ExtractedFrom string     `json:"extractedFrom,omitempty"`
}

// UnmarshalJSON 兼容旧格式：来源为纯字符串时作为 reference
func (s *Source) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*s = Source{Reference: ref}
		return nil
	}
	type plain Source
	return json.Unmarshal(data, (*plain)(s))
}

// ActionItem 会议中的待办事项
type ActionItem struct {
	Description    string   `json:"description" validate:"required"`
	Assignee       string   `json:"assignee,omitempty"`
	DueDate        string   `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Priority       Priority `json:"priority,omitempty" validate:"omitempty,oneof=critical high medium low"`
	Completed      bool     `json:"completed"`
	EstimatedHours Hours    `json:"estimatedHours,omitempty" validate:"gte=0"`
}

// UnmarshalJSON 兼容纯字符串形式的待办事项
func (a *ActionItem) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var desc string
		if err := json.Unmarshal(data, &desc); err != nil {
			return err
		}
		*a = ActionItem{Description: desc}
		return nil
	}
	type plain ActionItem
	return json.Unmarshal(data, (*plain)(a))
}

// MeetingRecord 结构化的会议记录
type MeetingRecord struct {
	Topic        string       `json:"topic" validate:"required"`
	Participants []string     `json:"participants" validate:"required,min=1,unique,dive,required"`
	KeyPoints    []string     `json:"keyPoints"`
	ActionItems  []ActionItem `json:"actionItems" validate:"dive"`
	Conclusion   string       `json:"conclusion"`
	Source       Source       `json:"source"`
}

// UnmarshalJSON 兼容 LLM 提示词中使用的 title / attendees 字段名
func (r *MeetingRecord) UnmarshalJSON(data []byte) error {
	type plain MeetingRecord
	aux := struct {
		*plain
		Title     string   `json:"title"`
		Attendees []string `json:"attendees"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Topic == "" {
		r.Topic = aux.Title
	}
	if len(r.Participants) == 0 {
		r.Participants = aux.Attendees
	}
	return nil
}

// Validate 校验会议记录，参会者必须非空且唯一
func (r *MeetingRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("会议记录为空")
	}
	if err := validate.Struct(r); err != nil {
		return describe(err)
	}
	for i, name := range r.Participants {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("participants[%d] 不能为空白", i)
		}
	}
	return nil
}

// Clone 深拷贝会议记录
func (r *MeetingRecord) Clone() MeetingRecord {
	return MeetingRecord{
		Topic:        r.Topic,
		Participants: append([]string(nil), r.Participants...),
		KeyPoints:    append([]string(nil), r.KeyPoints...),
		ActionItems:  append([]ActionItem(nil), r.ActionItems...),
		Conclusion:   r.Conclusion,
		Source:       r.Source,
	}
}

// Render 将会议记录渲染为纯文本，供关键词匹配与 LLM 使用
func (r *MeetingRecord) Render() string {
	var sb strings.Builder
	sb.WriteString("회의 주제: " + r.Topic + "\n")
	sb.WriteString("참석자: " + strings.Join(r.Participants, ", ") + "\n")
	if len(r.KeyPoints) > 0 {
		sb.WriteString("주요 안건:\n")
		for _, p := range r.KeyPoints {
			sb.WriteString("- " + p + "\n")
		}
	}
	if len(r.ActionItems) > 0 {
		sb.WriteString("액션 아이템:\n")
		for _, item := range r.ActionItems {
			line := "- " + item.Description
			if item.Assignee != "" {
				line += " (담당: " + item.Assignee + ")"
			}
			sb.WriteString(line + "\n")
		}
	}
	if r.Conclusion != "" {
		sb.WriteString("결론: " + r.Conclusion + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
