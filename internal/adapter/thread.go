package adapter

import (
	"fmt"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// ThreadMessage 聊天线程中的一条消息，Replies 为其回复
type ThreadMessage struct {
	ID      int64           `json:"id"`
	User    string          `json:"user"`
	Time    string          `json:"time,omitempty"`
	Message string          `json:"message"`
	IsBot   bool            `json:"isBot,omitempty"`
	Replies []ThreadMessage `json:"replies,omitempty"`
}

// FromThread 将根消息及其回复扁平化（先根消息，再按深度优先展开回复）
// 参会者按首次出现顺序去重，包含根消息作者，不包含机器人
func FromThread(root ThreadMessage, channel string) (Input, error) {
	if strings.TrimSpace(root.User) == "" {
		return Input{}, domain.Validationf("根消息缺少发送者")
	}
	if strings.TrimSpace(root.Message) == "" {
		return Input{}, domain.Validationf("根消息内容为空")
	}

	var messages []ChatMessage
	var participants []string
	seen := make(map[string]bool)

	var walk func(m ThreadMessage)
	walk = func(m ThreadMessage) {
		user := strings.TrimSpace(m.User)
		text := strings.TrimSpace(m.Message)
		if user != "" && text != "" {
			messages = append(messages, ChatMessage{User: user, Message: text})
			if !m.IsBot && !seen[user] {
				seen[user] = true
				participants = append(participants, user)
			}
		}
		for _, reply := range m.Replies {
			walk(reply)
		}
	}
	walk(root)

	return Input{
		Source: domain.Source{
			Type:          domain.SourceThread,
			Reference:     fmt.Sprintf("Slack Thread #%d", root.ID),
			ExtractedFrom: channel,
		},
		Text:         messagesToText(messages),
		Messages:     messages,
		Participants: participants,
	}, nil
}

// messagesToText 每行 "发送者: 内容"
func messagesToText(msgs []ChatMessage) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = m.User + ": " + m.Message
	}
	return strings.Join(lines, "\n")
}
