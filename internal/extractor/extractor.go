package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/progress"
)

// Strategy 会议记录抽取策略
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error)
}

// Delay 模拟处理耗时，由 Steps 次 Interval 等待组成
type Delay struct {
	Steps    int
	Interval time.Duration
}

func (d Delay) wait(ctx context.Context) error {
	return progress.Wait(ctx, d.Steps, d.Interval)
}

// New 按配置创建抽取策略，llm 模式必须提供 client
func New(c *config.Config, client MeetingExtractor, assigner assign.Assigner) (Strategy, error) {
	delay := Delay{
		Steps:    c.Pipeline.SimulatedSteps,
		Interval: time.Duration(c.Pipeline.SimulatedStepMs) * time.Millisecond,
	}

	switch c.Pipeline.ExtractionMode {
	case config.ExtractionHeuristic:
		return &HeuristicStrategy{
			KnownNames:      c.Pipeline.KnownParticipants,
			Placeholders:    c.Pipeline.Placeholders,
			KeyPointLimit:   c.Pipeline.KeyPointLimit,
			ActionItemLimit: c.Pipeline.ActionItemLimit,
			DueInDays:       c.Pipeline.DueInDays,
			Assigner:        assigner,
			Delay:           delay,
		}, nil
	case config.ExtractionCanned:
		return &CannedStrategy{Delay: delay}, nil
	case config.ExtractionLLM:
		if client == nil {
			return nil, fmt.Errorf("llm 抽取模式需要配置 LLM 客户端")
		}
		return &LLMStrategy{Client: client}, nil
	}
	return nil, fmt.Errorf("未知的抽取模式: %s", c.Pipeline.ExtractionMode)
}

// inputText 优先使用归一化文本，只有消息列表时按 "发送者: 内容" 拼接
func inputText(in adapter.Input) string {
	if in.Text != "" || len(in.Messages) == 0 {
		return in.Text
	}
	lines := make([]string, len(in.Messages))
	for i, m := range in.Messages {
		lines[i] = m.User + ": " + m.Message
	}
	return strings.Join(lines, "\n")
}
