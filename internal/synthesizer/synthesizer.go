package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/progress"
)

// Strategy 由会议记录生成 issue 的策略
type Strategy interface {
	Name() string
	Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error)
}

// Delay 模拟处理耗时，由 Steps 次 Interval 等待组成
type Delay struct {
	Steps    int
	Interval time.Duration
}

func (d Delay) wait(ctx context.Context) error {
	return progress.Wait(ctx, d.Steps, d.Interval)
}

const (
	maxTitleRunes   = 50
	sourceReference = "회의록 AI 분석"
	minHours        = 1
	maxHours        = 8
)

// tagBucket 标签与关键词，按顺序匹配
type tagBucket struct {
	tag      string
	keywords []string
}

var tagBuckets = []tagBucket{
	{"frontend", []string{"UI", "화면", "페이지", "디자인"}},
	{"backend", []string{"API", "서버", "데이터베이스", "DB"}},
	{"bugfix", []string{"버그", "오류", "수정", "에러"}},
	{"feature", []string{"기능", "구현", "개발", "추가"}},
	{"testing", []string{"테스트", "검증", "QA"}},
}

const defaultTag = "general"

// Tags 按关键词桶提取标签，未匹配任何桶时返回 general
func Tags(text string) []string {
	tags := make([]string, 0)
	for _, b := range tagBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, b.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return []string{defaultTag}
	}
	return tags
}

// TruncateTitle 标题超过 50 个字符时截断为 47 个字符加 "..."
func TruncateTitle(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxTitleRunes {
		return s
	}
	return string(r[:maxTitleRunes-3]) + "..."
}

// Options 各策略共用的依赖，零值字段使用默认实现
type Options struct {
	Assigner  assign.Assigner
	Dice      *assign.Dice
	DueInDays int
	Delay     Delay
	NewID     func() string
	Now       func() time.Time
}

func (o *Options) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return domain.NewIssueID()
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Options) assignee(given string) string {
	if given != "" || o.Assigner == nil {
		return given
	}
	return o.Assigner.Next()
}

func (o *Options) priority(given domain.Priority) domain.Priority {
	if given != "" {
		return given
	}
	if o.Dice == nil {
		return domain.PriorityMedium
	}
	return o.Dice.Priority()
}

func (o *Options) hours(given domain.Hours) domain.Hours {
	if given > 0 || o.Dice == nil {
		return given
	}
	return o.Dice.Hours(minHours, maxHours)
}

// newIssue 填充 issue 的公共字段，每个 issue 持有会议记录的独立副本
func (o *Options) newIssue(record *domain.MeetingRecord, now time.Time) domain.GeneratedIssue {
	sourceType := record.Source.Type
	if sourceType == "" {
		sourceType = domain.SourceText
	}
	return domain.GeneratedIssue{
		ID:        o.newID(),
		Source:    domain.Source{Type: sourceType, Reference: sourceReference, ExtractedFrom: record.Topic},
		CreatedAt: now,
		DueDate:   domain.DateAfter(now, o.DueInDays),
		// 副本，调用方修改 issue 不会影响原记录
		MeetingRecord: record.Clone(),
	}
}

// checkRecord 会议记录为空或不合法时返回 ErrSynthesis
func checkRecord(record *domain.MeetingRecord) error {
	if record == nil {
		return domain.Synthesisf("会议记录为空")
	}
	if err := record.Validate(); err != nil {
		return domain.Synthesisf("%v", err)
	}
	return nil
}

// New 按配置创建 issue 生成策略，llm 模式必须提供 client
func New(c *config.Config, client IssueExtractor, opts Options) (Strategy, error) {
	if opts.DueInDays == 0 {
		opts.DueInDays = c.Pipeline.DueInDays
	}
	if opts.Delay == (Delay{}) {
		opts.Delay = Delay{
			Steps:    c.Pipeline.SimulatedSteps,
			Interval: time.Duration(c.Pipeline.SimulatedStepMs) * time.Millisecond,
		}
	}

	switch c.Pipeline.SynthesisMode {
	case config.SynthesisRule:
		return &RuleStrategy{Options: opts}, nil
	case config.SynthesisKeyword:
		return &KeywordStrategy{Options: opts, Limit: c.Pipeline.KeywordIssueLimit}, nil
	case config.SynthesisLLM:
		if client == nil {
			return nil, fmt.Errorf("llm 生成模式需要配置 LLM 客户端")
		}
		opts.Delay = Delay{}
		return &LLMStrategy{Options: opts, Client: client}, nil
	}
	return nil, fmt.Errorf("未知的 issue 生成模式: %s", c.Pipeline.SynthesisMode)
}
