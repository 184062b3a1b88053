package extractor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

const (
	heuristicTopic      = "자동 추출된 회의록"
	heuristicConclusion = "주요 사안들이 논의되고 액션 아이템이 정리됨"
)

var actionMarkers = []string{"담당:", "할당:", "TODO:"}

// HeuristicStrategy 基于关键词扫描的抽取：
// 已知成员名识别参会者，前 K 行作为要点，带分配标记的行作为待办
type HeuristicStrategy struct {
	KnownNames      []string
	Placeholders    []string
	KeyPointLimit   int
	ActionItemLimit int
	DueInDays       int
	Assigner        assign.Assigner
	Delay           Delay
	Now             func() time.Time
}

func (s *HeuristicStrategy) Name() string {
	return "heuristic"
}

func (s *HeuristicStrategy) Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error) {
	if in.Blank() {
		return nil, domain.Validationf("empty input")
	}
	if err := s.Delay.wait(ctx); err != nil {
		return nil, err
	}

	text := inputText(in)
	lines := nonEmptyLines(text)

	record := &domain.MeetingRecord{
		Topic:        heuristicTopic,
		Participants: s.participants(in, text),
		KeyPoints:    firstN(lines, s.KeyPointLimit),
		ActionItems:  s.actionItems(actionCandidates(in, lines)),
		Conclusion:   heuristicConclusion,
		Source:       in.Source,
	}
	if err := record.Validate(); err != nil {
		return nil, domain.Extractionf("%v", err)
	}
	return record, nil
}

// participants 会话输入直接使用会话参与者，否则按首次出现顺序识别已知成员，都没有时使用占位名
func (s *HeuristicStrategy) participants(in adapter.Input, text string) []string {
	if len(in.Participants) > 0 {
		return append([]string(nil), in.Participants...)
	}
	if found := findNames(text, s.KnownNames); len(found) > 0 {
		return found
	}
	return append([]string(nil), s.Placeholders...)
}

// candidate 待办候选行，会话输入时带上发言人
type candidate struct {
	line    string
	speaker string
}

// actionCandidates 会话输入逐条扫描消息正文，避免 "发言人: " 前缀进入待办描述
func actionCandidates(in adapter.Input, lines []string) []candidate {
	out := make([]candidate, 0, len(lines))
	if len(in.Messages) == 0 {
		for _, line := range lines {
			out = append(out, candidate{line: line})
		}
		return out
	}
	for _, m := range in.Messages {
		for _, line := range nonEmptyLines(m.Message) {
			out = append(out, candidate{line: line, speaker: m.User})
		}
	}
	return out
}

// actionItems 负责人优先取行内出现的成员名，其次是发言人，最后由 Assigner 分配
func (s *HeuristicStrategy) actionItems(candidates []candidate) []domain.ActionItem {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	items := make([]domain.ActionItem, 0)
	for _, c := range candidates {
		if len(items) >= s.ActionItemLimit {
			break
		}
		if !isActionLine(c.line) {
			continue
		}
		desc := stripMarkers(c.line)
		if desc == "" {
			continue
		}

		assignee := c.speaker
		if names := findNames(c.line, s.KnownNames); len(names) > 0 {
			assignee = names[len(names)-1]
		} else if assignee == "" && s.Assigner != nil {
			assignee = s.Assigner.Next()
		}

		items = append(items, domain.ActionItem{
			Description: desc,
			Assignee:    assignee,
			Priority:    domain.PriorityMedium,
			DueDate:     domain.DateAfter(now(), s.DueInDays),
		})
	}
	return items
}

func isActionLine(line string) bool {
	if strings.HasPrefix(line, "-") {
		return true
	}
	for _, m := range actionMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func stripMarkers(line string) string {
	line = strings.TrimPrefix(line, "-")
	for _, m := range actionMarkers {
		line = strings.ReplaceAll(line, m, "")
	}
	return strings.Join(strings.Fields(line), " ")
}

// findNames 返回 text 中出现的名字，按首次出现位置排序
func findNames(text string, names []string) []string {
	type hit struct {
		name string
		pos  int
	}
	hits := make([]hit, 0)
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if pos := strings.Index(text, name); pos >= 0 {
			hits = append(hits, hit{name, pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	found := make([]string, len(hits))
	for i, h := range hits {
		found[i] = h.name
	}
	return found
}

func nonEmptyLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func firstN(lines []string, n int) []string {
	if n > len(lines) {
		n = len(lines)
	}
	return append([]string(nil), lines[:n]...)
}
