package adapter

import (
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// ChatMessage 扁平化后的单条对话
type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Input 适配器归一化后的抽取输入
type Input struct {
	Source       domain.Source
	Text         string
	Messages     []ChatMessage
	Participants []string
}

// Blank 输入是否没有任何可用内容
func (in Input) Blank() bool {
	return strings.TrimSpace(in.Text) == "" && len(in.Messages) == 0
}

// FromText 自由文本输入，内容原样透传
func FromText(text string) (Input, error) {
	if strings.TrimSpace(text) == "" {
		return Input{}, domain.Validationf("empty input")
	}
	return Input{
		Source: domain.Source{Type: domain.SourceText, Reference: "직접 입력"},
		Text:   text,
	}, nil
}
