package extractor

import (
	"context"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// MeetingExtractor 调用 LLM 抽取会议记录（便于测试注入 mock）
type MeetingExtractor interface {
	ExtractMeeting(ctx context.Context, text string) (*domain.MeetingRecord, error)
}

// LLMStrategy 通过兼容 OpenAI 的后端抽取会议记录，失败时直接返回错误，不回退到模拟数据
type LLMStrategy struct {
	Client MeetingExtractor
}

func (s *LLMStrategy) Name() string {
	return "llm"
}

func (s *LLMStrategy) Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error) {
	if in.Blank() {
		return nil, domain.Validationf("empty input")
	}

	record, err := s.Client.ExtractMeeting(ctx, inputText(in))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ExternalCallf("LLM 返回的会议记录为空")
	}

	for i := range record.ActionItems {
		item := &record.ActionItems[i]
		if item.Priority == "" {
			continue
		}
		p, err := domain.ParsePriority(string(item.Priority))
		if err != nil {
			return nil, domain.ExternalCallf("LLM 返回的优先级不合法: %q", item.Priority)
		}
		item.Priority = p
	}

	record.Source = in.Source
	if err := record.Validate(); err != nil {
		return nil, domain.ExternalCallf("LLM 返回的会议记录不合法: %v", err)
	}
	return record, nil
}
