package synthesizer

import (
	"context"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/llm"
)

// IssueExtractor 调用 LLM 提取 issue 草稿（便于测试注入 mock）
type IssueExtractor interface {
	ExtractIssues(ctx context.Context, meetingContent string) ([]llm.IssueDraft, error)
}

// LLMStrategy 由 LLM 从会议记录中提取 issue，返回内容不合法时报 ErrExternalCall
type LLMStrategy struct {
	Options
	Client IssueExtractor
}

func (s *LLMStrategy) Name() string {
	return "llm"
}

func (s *LLMStrategy) Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error) {
	if err := checkRecord(record); err != nil {
		return nil, err
	}

	drafts, err := s.Client.ExtractIssues(ctx, record.Render())
	if err != nil {
		return nil, err
	}

	now := s.now()
	issues := make([]domain.GeneratedIssue, 0, len(drafts))
	for i, d := range drafts {
		if strings.TrimSpace(d.Title) == "" {
			return nil, domain.ExternalCallf("LLM 返回的第 %d 个 issue 缺少标题", i+1)
		}
		priority, err := domain.ParsePriority(d.Priority)
		if err != nil {
			return nil, domain.ExternalCallf("LLM 返回的第 %d 个 issue 优先级不合法: %q", i+1, d.Priority)
		}

		issue := s.newIssue(record, now)
		issue.Title = TruncateTitle(d.Title)
		issue.Description = d.Description
		issue.Assignee = s.assignee(strings.TrimSpace(d.Assignee))
		issue.Priority = priority
		issue.EstimatedHours = d.EstimatedHours
		issue.Tags = append([]string(nil), d.Tags...)
		if len(issue.Tags) == 0 {
			issue.Tags = Tags(d.Title + " " + d.Description)
		}

		if err := issue.Validate(); err != nil {
			return nil, domain.ExternalCallf("LLM 返回的第 %d 个 issue 不合法: %v", i+1, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
