package synthesizer

import (
	"context"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// RuleStrategy 严格映射：每个待办事项生成一个 issue
// 负责人、优先级、工时优先取自待办，缺失时轮流或随机分配
type RuleStrategy struct {
	Options
}

func (s *RuleStrategy) Name() string {
	return "rule"
}

func (s *RuleStrategy) Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error) {
	if err := checkRecord(record); err != nil {
		return nil, err
	}
	if err := s.Delay.wait(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	issues := make([]domain.GeneratedIssue, 0, len(record.ActionItems))
	for _, item := range record.ActionItems {
		desc := strings.TrimSpace(item.Description)

		issue := s.newIssue(record, now)
		issue.Title = TruncateTitle(desc)
		issue.Description = "회의에서 논의된 사항: " + desc
		issue.Assignee = s.assignee(item.Assignee)
		issue.Priority = s.priority(item.Priority)
		issue.EstimatedHours = s.hours(item.EstimatedHours)
		issue.Tags = Tags(desc)
		if item.DueDate != "" {
			issue.DueDate = item.DueDate
		}

		if err := issue.Validate(); err != nil {
			return nil, domain.Synthesisf("待办 %q 无法生成 issue: %v", desc, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
