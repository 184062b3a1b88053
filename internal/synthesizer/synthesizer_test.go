package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 7, 2, 14, 30, 0, 0, time.UTC)

func testOptions() Options {
	n := 0
	return Options{
		Assigner:  assign.NewRoundRobin([]string{"임현우", "김개발"}),
		Dice:      assign.NewDice(assign.NewRand(42)),
		DueInDays: 7,
		NewID: func() string {
			n++
			return fmt.Sprintf("issue-%d", n)
		},
		Now: func() time.Time { return fixedNow },
	}
}

func sampleRecord() *domain.MeetingRecord {
	return &domain.MeetingRecord{
		Topic:        "스프린트 계획 회의 #15",
		Participants: []string{"임현우", "김개발", "박디자인"},
		KeyPoints:    []string{"로그인 세션 만료 문제 우선 해결", "모바일 반응형 UI 개선 필요"},
		ActionItems: []domain.ActionItem{
			{Description: "로그인 세션 관리 로직 개선 및 버그 수정", Assignee: "김개발", Priority: domain.PriorityHigh, EstimatedHours: 6, DueDate: "2024-07-05"},
			{Description: "모바일 UI 반응형 개선"},
			{Description: "배포 일정 공유"},
		},
		Conclusion: "우선순위에 따라 진행",
		Source:     domain.Source{Type: domain.SourceThread, Reference: "Slack Thread #15"},
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"메인 페이지 UI 개선", []string{"frontend"}},
		{"API 서버 응답 속도", []string{"backend"}},
		{"로그인 버그 수정", []string{"bugfix"}},
		{"결제 기능 구현", []string{"feature"}},
		{"회귀 테스트 진행", []string{"testing"}},
		{"DB 오류 수정 후 QA", []string{"backend", "bugfix", "testing"}},
		{"배포 일정 공유", []string{"general"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Tags(tt.text))
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "짧은 제목", TruncateTitle(" 짧은 제목 "))

	exact := strings.Repeat("가", 50)
	assert.Equal(t, exact, TruncateTitle(exact))

	long := strings.Repeat("가", 51)
	got := TruncateTitle(long)
	assert.Equal(t, strings.Repeat("가", 47)+"...", got)
	assert.Len(t, []rune(got), 50)
}

func TestRuleStrategy_OneIssuePerActionItem(t *testing.T) {
	record := sampleRecord()
	s := &RuleStrategy{Options: testOptions()}

	issues, err := s.Synthesize(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, issues, len(record.ActionItems))

	first := issues[0]
	assert.Equal(t, "issue-1", first.ID)
	assert.Equal(t, "로그인 세션 관리 로직 개선 및 버그 수정", first.Title)
	assert.Equal(t, "회의에서 논의된 사항: 로그인 세션 관리 로직 개선 및 버그 수정", first.Description)
	assert.Equal(t, "김개발", first.Assignee)
	assert.Equal(t, domain.PriorityHigh, first.Priority)
	assert.Equal(t, domain.Hours(6), first.EstimatedHours)
	assert.Equal(t, "2024-07-05", first.DueDate)
	assert.Equal(t, []string{"bugfix"}, first.Tags)
	assert.Equal(t, domain.Source{Type: domain.SourceThread, Reference: "회의록 AI 분석", ExtractedFrom: "스프린트 계획 회의 #15"}, first.Source)
	assert.Equal(t, fixedNow, first.CreatedAt)

	second := issues[1]
	assert.Equal(t, "임현우", second.Assignee, "缺少负责人时轮流分配")
	assert.True(t, second.Priority.Valid())
	assert.GreaterOrEqual(t, float64(second.EstimatedHours), 1.0)
	assert.LessOrEqual(t, float64(second.EstimatedHours), 8.0)
	assert.Equal(t, "2024-07-09", second.DueDate)
	assert.Equal(t, []string{"frontend"}, second.Tags)

	assert.Equal(t, "김개발", issues[2].Assignee)
	assert.Equal(t, []string{"general"}, issues[2].Tags)
}

func TestRuleStrategy_EachIssueOwnsRecordCopy(t *testing.T) {
	record := sampleRecord()
	issues, err := (&RuleStrategy{Options: testOptions()}).Synthesize(context.Background(), record)
	require.NoError(t, err)

	issues[0].MeetingRecord.Participants[0] = "changed"
	issues[0].MeetingRecord.ActionItems[0].Assignee = "changed"
	assert.Equal(t, "임현우", issues[1].MeetingRecord.Participants[0])
	assert.Equal(t, "임현우", record.Participants[0])
	assert.Equal(t, "김개발", record.ActionItems[0].Assignee)
}

func TestRuleStrategy_NoActionItems(t *testing.T) {
	record := sampleRecord()
	record.ActionItems = nil
	issues, err := (&RuleStrategy{Options: testOptions()}).Synthesize(context.Background(), record)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestStrategies_RejectInvalidRecord(t *testing.T) {
	strategies := []Strategy{
		&RuleStrategy{Options: testOptions()},
		&KeywordStrategy{Options: testOptions(), Limit: 3},
		&LLMStrategy{Options: testOptions(), Client: new(mockIssueExtractor)},
	}
	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Synthesize(context.Background(), nil)
			assert.ErrorIs(t, err, domain.ErrSynthesis)

			_, err = s.Synthesize(context.Background(), &domain.MeetingRecord{Topic: "참석자 없음"})
			assert.ErrorIs(t, err, domain.ErrSynthesis)
		})
	}
}

func TestKeywordStrategy(t *testing.T) {
	record := sampleRecord()
	record.Conclusion = "다음 주 회귀 테스트 필요"

	s := &KeywordStrategy{Options: testOptions(), Limit: 3}
	issues, err := s.Synthesize(context.Background(), record)
	require.NoError(t, err)

	require.Len(t, issues, 3, "最多生成 3 个 issue")
	assert.Equal(t, "모바일 반응형 UI 개선 필요", issues[0].Title)
	assert.Equal(t, []string{"frontend"}, issues[0].Tags)
	assert.Equal(t, "로그인 세션 관리 로직 개선 및 버그 수정", issues[1].Title)
	assert.Equal(t, "모바일 UI 반응형 개선", issues[2].Title)
	for _, issue := range issues {
		assert.True(t, containsAny(issue.Title, ActionKeywords), issue.Title)
		assert.NotEmpty(t, issue.Assignee)
	}
}

func TestKeywordStrategy_NoKeywords(t *testing.T) {
	record := &domain.MeetingRecord{Topic: "잡담", Participants: []string{"a"}, KeyPoints: []string{"점심 메뉴"}}
	issues, err := (&KeywordStrategy{Options: testOptions(), Limit: 3}).Synthesize(context.Background(), record)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestDelay_Cancelled(t *testing.T) {
	opts := testOptions()
	opts.Delay = Delay{Steps: 3, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&RuleStrategy{Options: opts}).Synthesize(ctx, sampleRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

type mockIssueExtractor struct {
	mock.Mock
}

func (m *mockIssueExtractor) ExtractIssues(ctx context.Context, meetingContent string) ([]llm.IssueDraft, error) {
	args := m.Called(ctx, meetingContent)
	drafts, _ := args.Get(0).([]llm.IssueDraft)
	return drafts, args.Error(1)
}

func TestLLMStrategy(t *testing.T) {
	tests := []struct {
		name    string
		drafts  []llm.IssueDraft
		err     error
		wantErr error
		want    int
	}{
		{
			name: "正常返回",
			drafts: []llm.IssueDraft{
				{Title: "로그인 API 버그 수정", Description: "세션 만료", Assignee: "김개발", Priority: "High", EstimatedHours: 6, Tags: []string{"backend"}},
				{Title: "메인 페이지 개선", Priority: "low"},
			},
			want: 2,
		},
		{name: "后端失败", err: domain.ExternalCallf("调用 LLM API 失败: %w", errors.New("503")), wantErr: domain.ErrExternalCall},
		{name: "优先级不合法", drafts: []llm.IssueDraft{{Title: "a", Priority: "urgent"}}, wantErr: domain.ErrExternalCall},
		{name: "缺少标题", drafts: []llm.IssueDraft{{Title: " ", Priority: "low"}}, wantErr: domain.ErrExternalCall},
		{name: "工时为负", drafts: []llm.IssueDraft{{Title: "a", Priority: "low", EstimatedHours: -1}}, wantErr: domain.ErrExternalCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := sampleRecord()
			client := new(mockIssueExtractor)
			client.On("ExtractIssues", mock.Anything, record.Render()).Return(tt.drafts, tt.err)

			issues, err := (&LLMStrategy{Options: testOptions(), Client: client}).Synthesize(context.Background(), record)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, issues, tt.want)
			assert.Equal(t, domain.PriorityHigh, issues[0].Priority)
			assert.Equal(t, []string{"backend"}, issues[0].Tags)
			assert.Equal(t, "임현우", issues[1].Assignee, "缺少负责人时轮流分配")
			assert.Equal(t, []string{"frontend"}, issues[1].Tags)
		})
	}
}

func TestNew(t *testing.T) {
	c := config.Default()
	s, err := New(c, nil, testOptions())
	require.NoError(t, err)
	assert.Equal(t, "rule", s.Name())

	c.Pipeline.SynthesisMode = config.SynthesisKeyword
	s, err = New(c, nil, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, s.(*KeywordStrategy).Limit)

	c.Pipeline.SynthesisMode = config.SynthesisLLM
	_, err = New(c, nil, testOptions())
	assert.Error(t, err)

	s, err = New(c, new(mockIssueExtractor), testOptions())
	require.NoError(t, err)
	assert.Equal(t, "llm", s.Name())
}

func TestFormatIssuesForDisplay(t *testing.T) {
	assert.Empty(t, FormatIssuesForDisplay(nil))

	issues, err := (&RuleStrategy{Options: testOptions()}).Synthesize(context.Background(), sampleRecord())
	require.NoError(t, err)

	got := FormatIssuesForDisplay(issues[:1])
	assert.Contains(t, got, "📋 생성된 이슈 1개")
	assert.Contains(t, got, "🗂 스프린트 계획 회의 #15")
	assert.Contains(t, got, "1. 🟠 [high] 로그인 세션 관리 로직 개선 및 버그 수정")
	assert.Contains(t, got, "담당: 김개발 · 예상: 6h · 마감: 2024-07-05")
	assert.Contains(t, got, "태그: #bugfix")
	assert.Contains(t, got, "생성: 2024. 7. 2. 오후 2:30:00")
}
