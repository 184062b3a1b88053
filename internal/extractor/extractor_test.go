package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

func newHeuristic() *HeuristicStrategy {
	c := config.Default()
	return &HeuristicStrategy{
		KnownNames:      c.Pipeline.KnownParticipants,
		Placeholders:    c.Pipeline.Placeholders,
		KeyPointLimit:   3,
		ActionItemLimit: 2,
		DueInDays:       7,
		Assigner:        assign.NewRoundRobin([]string{"임현우", "김개발"}),
		Now:             func() time.Time { return fixedNow },
	}
}

func textInput(t *testing.T, text string) adapter.Input {
	t.Helper()
	in, err := adapter.FromText(text)
	require.NoError(t, err)
	return in
}

func TestHeuristic_FreeText(t *testing.T) {
	text := `스프린트 회의 정리
김개발, 박디자인 참석
로그인 버그 우선 처리
담당: 김개발 로그인 세션 버그 수정
- 메인 페이지 레이아웃 개선
TODO: 배포 일정 공유`

	record, err := newHeuristic().Extract(context.Background(), textInput(t, text))
	require.NoError(t, err)

	assert.Equal(t, "자동 추출된 회의록", record.Topic)
	assert.Equal(t, []string{"김개발", "박디자인"}, record.Participants)
	assert.Equal(t, []string{"스프린트 회의 정리", "김개발, 박디자인 참석", "로그인 버그 우선 처리"}, record.KeyPoints)

	require.Len(t, record.ActionItems, 2, "待办数量受上限约束")
	assert.Equal(t, domain.ActionItem{
		Description: "김개발 로그인 세션 버그 수정",
		Assignee:    "김개발",
		Priority:    domain.PriorityMedium,
		DueDate:     "2024-07-09",
	}, record.ActionItems[0])
	assert.Equal(t, "메인 페이지 레이아웃 개선", record.ActionItems[1].Description)
	assert.Equal(t, "임현우", record.ActionItems[1].Assignee, "行内无成员名时轮流分配")
	assert.Equal(t, domain.SourceText, record.Source.Type)
}

func TestHeuristic_PlaceholdersWhenNoKnownNames(t *testing.T) {
	record, err := newHeuristic().Extract(context.Background(), textInput(t, "오늘은 배포 일정만 논의"))
	require.NoError(t, err)
	assert.Equal(t, []string{"참여자1", "참여자2"}, record.Participants)
	assert.Equal(t, []string{"오늘은 배포 일정만 논의"}, record.KeyPoints)
	assert.Empty(t, record.ActionItems)
}

func TestHeuristic_ParticipantsInFirstAppearanceOrder(t *testing.T) {
	record, err := newHeuristic().Extract(context.Background(), textInput(t, "최테스터가 먼저 말하고 임현우가 답함"))
	require.NoError(t, err)
	assert.Equal(t, []string{"최테스터", "임현우"}, record.Participants)
}

func TestHeuristic_NonEmptyInputAlwaysYieldsRecord(t *testing.T) {
	inputs := []string{"a", "  x  ", "\n\n한 줄\n", "- 할 일", "TODO:"}
	for _, text := range inputs {
		record, err := newHeuristic().Extract(context.Background(), textInput(t, text))
		require.NoError(t, err, text)
		assert.NotEmpty(t, record.Participants, text)
		assert.NotEmpty(t, record.KeyPoints, text)
	}
}

func TestStrategies_RejectBlankInput(t *testing.T) {
	strategies := []Strategy{
		newHeuristic(),
		&CannedStrategy{},
		&LLMStrategy{Client: new(mockMeetingExtractor)},
	}
	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Extract(context.Background(), adapter.Input{Text: " "})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestHeuristic_DemoThread(t *testing.T) {
	in, err := adapter.FromThread(DemoThread(), "#dev-team")
	require.NoError(t, err)

	record, err := newHeuristic().Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"임현우", "김개발", "박디자인", "이백엔드", "최테스터"}, record.Participants)
	require.Len(t, record.ActionItems, 2)
	assert.Equal(t, "로그인 세션 만료 버그 수정", record.ActionItems[0].Description, "描述不带发言人前缀")
	assert.Equal(t, "김개발", record.ActionItems[0].Assignee, "默认由发言人负责")
	assert.Equal(t, "모바일 메인 페이지 레이아웃 개선안 공유드릴게요. 박디자인", record.ActionItems[1].Description)
	assert.Equal(t, "박디자인", record.ActionItems[1].Assignee)
	assert.Equal(t, domain.SourceThread, record.Source.Type)
}

func TestHeuristic_ThreadSpeakerIsDefaultAssignee(t *testing.T) {
	in, err := adapter.FromThread(adapter.ThreadMessage{
		User:    "임현우",
		Message: "회의 시작",
		Replies: []adapter.ThreadMessage{
			{User: "홍길동", Message: "- 배포 스크립트 정리"},
		},
	}, "#ops")
	require.NoError(t, err)

	record, err := newHeuristic().Extract(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, record.ActionItems, 1)
	assert.Equal(t, "배포 스크립트 정리", record.ActionItems[0].Description)
	assert.Equal(t, "홍길동", record.ActionItems[0].Assignee, "发言人不在已知成员中时也不走轮流分配")
}

func TestCanned_DemoThread(t *testing.T) {
	in, err := adapter.FromThread(DemoThread(), "#dev-team")
	require.NoError(t, err)

	s := &CannedStrategy{Now: func() time.Time { return fixedNow }}
	record, err := s.Extract(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, record.Validate())
	assert.Len(t, record.Participants, 5)
	assert.Len(t, record.ActionItems, 3)
	assert.Equal(t, "2024-07-05", record.ActionItems[0].DueDate)
	assert.Equal(t, in.Source, record.Source)
}

func TestDelay_Cancelled(t *testing.T) {
	s := newHeuristic()
	s.Delay = Delay{Steps: 5, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Extract(ctx, textInput(t, "회의"))
	assert.ErrorIs(t, err, context.Canceled)
}

type mockMeetingExtractor struct {
	mock.Mock
}

func (m *mockMeetingExtractor) ExtractMeeting(ctx context.Context, text string) (*domain.MeetingRecord, error) {
	args := m.Called(ctx, text)
	record, _ := args.Get(0).(*domain.MeetingRecord)
	return record, args.Error(1)
}

func TestLLMStrategy(t *testing.T) {
	tests := []struct {
		name    string
		record  *domain.MeetingRecord
		err     error
		wantErr error
	}{
		{
			name:   "正常返回并规范化优先级",
			record: &domain.MeetingRecord{Topic: "t", Participants: []string{"a"}, ActionItems: []domain.ActionItem{{Description: "x", Priority: "High"}}},
		},
		{
			name:    "后端调用失败",
			err:     domain.ExternalCallf("调用 LLM API 失败: %w", errors.New("503")),
			wantErr: domain.ErrExternalCall,
		},
		{
			name:    "优先级不合法",
			record:  &domain.MeetingRecord{Topic: "t", Participants: []string{"a"}, ActionItems: []domain.ActionItem{{Description: "x", Priority: "urgent"}}},
			wantErr: domain.ErrExternalCall,
		},
		{
			name:    "返回空记录",
			wantErr: domain.ErrExternalCall,
		},
		{
			name:    "缺少参会者",
			record:  &domain.MeetingRecord{Topic: "t"},
			wantErr: domain.ErrExternalCall,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockMeetingExtractor)
			client.On("ExtractMeeting", mock.Anything, "회의 내용").Return(tt.record, tt.err)

			s := &LLMStrategy{Client: client}
			in := textInput(t, "회의 내용")
			record, err := s.Extract(context.Background(), in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.PriorityHigh, record.ActionItems[0].Priority)
			assert.Equal(t, in.Source, record.Source)
		})
	}
}

func TestNew(t *testing.T) {
	c := config.Default()
	s, err := New(c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", s.Name())

	c.Pipeline.ExtractionMode = config.ExtractionCanned
	s, err = New(c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "canned", s.Name())

	c.Pipeline.ExtractionMode = config.ExtractionLLM
	_, err = New(c, nil, nil)
	assert.Error(t, err, "llm 模式不能在没有客户端时静默退化")

	s, err = New(c, new(mockMeetingExtractor), nil)
	require.NoError(t, err)
	assert.Equal(t, "llm", s.Name())

	c.Pipeline.ExtractionMode = "magic"
	_, err = New(c, nil, nil)
	assert.Error(t, err)
}
