package synthesizer

import (
	"fmt"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

var priorityBadges = map[domain.Priority]string{
	domain.PriorityCritical: "🔴",
	domain.PriorityHigh:     "🟠",
	domain.PriorityMedium:   "🟡",
	domain.PriorityLow:      "🟢",
}

// FormatIssuesForDisplay 将生成的 issue 格式化为纯文本摘要，用于命令行输出和日志
func FormatIssuesForDisplay(issues []domain.GeneratedIssue) string {
	if len(issues) == 0 {
		return ""
	}

	var sb strings.Builder

	// 头部
	sb.WriteString(fmt.Sprintf("📋 생성된 이슈 %d개\n", len(issues)))
	if topic := issues[0].MeetingRecord.Topic; topic != "" {
		sb.WriteString(fmt.Sprintf("🗂 %s\n", topic))
	}

	for i, issue := range issues {
		sb.WriteString(fmt.Sprintf("\n%d. %s [%s] %s\n", i+1, priorityBadges[issue.Priority], issue.Priority, issue.Title))
		sb.WriteString(fmt.Sprintf("   담당: %s · 예상: %s · 마감: %s\n", orDash(issue.Assignee), issue.EstimatedHours, orDash(issue.DueDate)))
		if len(issue.Tags) > 0 {
			sb.WriteString("   태그: #" + strings.Join(issue.Tags, " #") + "\n")
		}
		if !issue.CreatedAt.IsZero() {
			sb.WriteString("   생성: " + domain.FormatCreatedAt(issue.CreatedAt) + "\n")
		}
	}

	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
