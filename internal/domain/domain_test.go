package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() MeetingRecord {
	return MeetingRecord{
		Topic:        "스프린트 계획 회의 #15",
		Participants: []string{"임현우", "김개발"},
		KeyPoints:    []string{"로그인 세션 만료 문제 우선 해결"},
		ActionItems: []ActionItem{
			{Description: "로그인 세션 관리 로직 개선", Assignee: "김개발", Priority: PriorityHigh, EstimatedHours: 6},
		},
		Conclusion: "이번 주 내 완료 목표",
	}
}

func TestMeetingRecord_UnmarshalAliases(t *testing.T) {
	raw := `{"title":"자동 추출된 회의록","attendees":["임현우","김개발"],"keyPoints":["a"],"actionItems":["세션 로직 검토",{"description":"자동 연장 구현","assignee":"김개발","priority":"high","estimatedHours":"4h"}],"conclusion":"ok"}`

	var r MeetingRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, "자동 추출된 회의록", r.Topic)
	assert.Equal(t, []string{"임현우", "김개발"}, r.Participants)
	require.Len(t, r.ActionItems, 2)
	assert.Equal(t, ActionItem{Description: "세션 로직 검토"}, r.ActionItems[0])
	assert.Equal(t, Hours(4), r.ActionItems[1].EstimatedHours)
	assert.Equal(t, PriorityHigh, r.ActionItems[1].Priority)
}

func TestMeetingRecord_TopicWinsOverTitle(t *testing.T) {
	var r MeetingRecord
	require.NoError(t, json.Unmarshal([]byte(`{"topic":"A","title":"B","participants":["x"]}`), &r))
	assert.Equal(t, "A", r.Topic)
}

func TestMeetingRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *MeetingRecord)
		wantErr bool
	}{
		{"合法记录", func(r *MeetingRecord) {}, false},
		{"缺少主题", func(r *MeetingRecord) { r.Topic = "" }, true},
		{"没有参会者", func(r *MeetingRecord) { r.Participants = nil }, true},
		{"参会者重复", func(r *MeetingRecord) { r.Participants = []string{"a", "a"} }, true},
		{"参会者为空白", func(r *MeetingRecord) { r.Participants = []string{"a", "  "} }, true},
		{"待办优先级非法", func(r *MeetingRecord) { r.ActionItems[0].Priority = "urgent" }, true},
		{"待办描述为空", func(r *MeetingRecord) { r.ActionItems[0].Description = "" }, true},
		{"截止日期格式错误", func(r *MeetingRecord) { r.ActionItems[0].DueDate = "07/05/2024" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRecord()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var nilRecord *MeetingRecord
	assert.Error(t, nilRecord.Validate())
}

func TestMeetingRecord_CloneIsDeep(t *testing.T) {
	r := sampleRecord()
	c := r.Clone()
	c.Participants[0] = "changed"
	c.ActionItems[0].Assignee = "changed"
	assert.Equal(t, "임현우", r.Participants[0])
	assert.Equal(t, "김개발", r.ActionItems[0].Assignee)
}

func TestMeetingRecord_Render(t *testing.T) {
	r := sampleRecord()
	got := r.Render()
	assert.Contains(t, got, "회의 주제: 스프린트 계획 회의 #15")
	assert.Contains(t, got, "참석자: 임현우, 김개발")
	assert.Contains(t, got, "- 로그인 세션 관리 로직 개선 (담당: 김개발)")
	assert.Contains(t, got, "결론: 이번 주 내 완료 목표")
}

func TestSource_UnmarshalString(t *testing.T) {
	var s Source
	require.NoError(t, json.Unmarshal([]byte(`"meeting.txt"`), &s))
	assert.Equal(t, Source{Reference: "meeting.txt"}, s)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"thread","reference":"Slack Thread #1","extractedFrom":"#dev-team"}`), &s))
	assert.Equal(t, SourceThread, s.Type)
	assert.Equal(t, "#dev-team", s.ExtractedFrom)
}

func TestHours(t *testing.T) {
	tests := []struct {
		in      string
		want    Hours
		wantErr bool
	}{
		{"6h", 6, false},
		{"6", 6, false},
		{"1.5h", 1.5, false},
		{" 8H ", 8, false},
		{"", 0, false},
		{"abc", 0, true},
		{"-2h", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHours(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "6h", Hours(6).String())
	assert.Equal(t, "1.5h", Hours(1.5).String())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGeneratedIssue_ValidateAndClone(t *testing.T) {
	issue := GeneratedIssue{
		ID:            NewIssueID(),
		Title:         "로그인 API 버그 수정",
		Priority:      PriorityHigh,
		Tags:          []string{"backend"},
		DueDate:       "2024-07-05",
		MeetingRecord: sampleRecord(),
	}
	require.NoError(t, issue.Validate())

	c := issue.Clone()
	c.Tags[0] = "frontend"
	c.MeetingRecord.Participants[0] = "x"
	assert.Equal(t, "backend", issue.Tags[0])
	assert.Equal(t, "임현우", issue.MeetingRecord.Participants[0])

	issue.Priority = "urgent"
	assert.Error(t, issue.Validate())
}

func TestFormatCreatedAt(t *testing.T) {
	assert.Equal(t, "2024. 7. 2. 오후 2:30:05", FormatCreatedAt(time.Date(2024, 7, 2, 14, 30, 5, 0, time.UTC)))
	assert.Equal(t, "2024. 7. 2. 오전 12:00:00", FormatCreatedAt(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)))
}

func TestKind(t *testing.T) {
	err := Validationf("empty input")
	assert.Equal(t, ErrValidation, Kind(err))
	assert.Equal(t, "validation error: empty input", err.Error())

	wrapped := ExternalCallf("调用失败: %w", errors.New("boom"))
	assert.Equal(t, ErrExternalCall, Kind(wrapped))
	assert.Nil(t, Kind(errors.New("other")))
}
