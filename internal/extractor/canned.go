package extractor

import (
	"context"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// CannedStrategy 演示用：无论输入内容，返回为示例会话准备的固定会议记录
// 空输入仍然会被拒绝
type CannedStrategy struct {
	Delay Delay
	Now   func() time.Time
}

func (s *CannedStrategy) Name() string {
	return "canned"
}

func (s *CannedStrategy) Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error) {
	if in.Blank() {
		return nil, domain.Validationf("empty input")
	}
	if err := s.Delay.wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	record := sprintRecord(now)
	record.Source = in.Source
	return record, nil
}

func sprintRecord(now time.Time) *domain.MeetingRecord {
	return &domain.MeetingRecord{
		Topic:        "스프린트 계획 회의 #15",
		Participants: []string{"임현우", "김개발", "박디자인", "이백엔드", "최테스터"},
		KeyPoints: []string{
			"로그인 세션 만료 문제 우선 해결",
			"모바일 반응형 UI 개선 필요",
			"API 응답 속도 3초 → 1초 이하로 개선",
			"팀 간 협업 강화 필요",
		},
		ActionItems: []domain.ActionItem{
			{
				Description:    "로그인 세션 관리 로직 개선",
				Assignee:       "김개발",
				DueDate:        domain.DateAfter(now, 3),
				Priority:       domain.PriorityHigh,
				EstimatedHours: 6,
			},
			{
				Description:    "모바일 UI 반응형 개선",
				Assignee:       "박디자인",
				DueDate:        domain.DateAfter(now, 6),
				Priority:       domain.PriorityMedium,
				EstimatedHours: 8,
			},
			{
				Description:    "데이터베이스 쿼리 최적화",
				Assignee:       "이백엔드",
				DueDate:        domain.DateAfter(now, 4),
				Priority:       domain.PriorityCritical,
				EstimatedHours: 10,
			},
		},
		Conclusion: "각 팀원별 역할이 명확히 분배되었으며, 우선순위에 따라 작업을 진행하기로 함",
	}
}

// DemoThread 示例 Slack 会话：发起人加 4 位不同成员的回复
func DemoThread() adapter.ThreadMessage {
	return adapter.ThreadMessage{
		ID:      15,
		User:    "임현우",
		Time:    "10:00",
		Message: "스프린트 15 회의를 시작하겠습니다. 이번 주 우선순위를 정리해 주세요.",
		Replies: []adapter.ThreadMessage{
			{ID: 16, User: "김개발", Time: "10:02", Message: "TODO: 로그인 세션 만료 버그 수정"},
			{ID: 17, User: "박디자인", Time: "10:03", Message: "모바일 메인 페이지 레이아웃 개선안 공유드릴게요. 담당: 박디자인"},
			{ID: 18, User: "이백엔드", Time: "10:05", Message: "사용자 조회 API 응답이 3초 이상 걸려서 쿼리 최적화가 필요합니다"},
			{ID: 19, User: "최테스터", Time: "10:06", Message: "수정 완료되면 회귀 테스트 진행하겠습니다"},
		},
	}
}
