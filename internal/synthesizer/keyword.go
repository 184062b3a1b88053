package synthesizer

import (
	"context"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// ActionKeywords 表示需要跟进的关键词
var ActionKeywords = []string{"해야", "필요", "개선", "수정", "구현", "개발", "디자인", "테스트"}

// KeywordStrategy 扫描会议要点、待办与结论中包含动作关键词的句子，每句生成一个 issue，最多 Limit 个
type KeywordStrategy struct {
	Options
	Limit int
}

func (s *KeywordStrategy) Name() string {
	return "keyword"
}

func (s *KeywordStrategy) Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error) {
	if err := checkRecord(record); err != nil {
		return nil, err
	}
	if err := s.Delay.wait(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	issues := make([]domain.GeneratedIssue, 0)
	for _, line := range contentLines(record) {
		if len(issues) >= s.Limit {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || !containsAny(line, ActionKeywords) {
			continue
		}

		issue := s.newIssue(record, now)
		issue.Title = TruncateTitle(line)
		issue.Description = "회의에서 논의된 사항: " + line
		issue.Assignee = s.assignee("")
		issue.Priority = s.priority("")
		issue.EstimatedHours = s.hours(0)
		issue.Tags = Tags(line)

		if err := issue.Validate(); err != nil {
			return nil, domain.Synthesisf("%q 无法生成 issue: %v", line, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// contentLines 会议内容行，不含主题与参会者（成员名中可能包含关键词）
func contentLines(record *domain.MeetingRecord) []string {
	lines := append([]string(nil), record.KeyPoints...)
	for _, item := range record.ActionItems {
		lines = append(lines, item.Description)
	}
	return append(lines, record.Conclusion)
}
