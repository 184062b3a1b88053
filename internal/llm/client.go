package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

type Client struct {
	config         *config.LLM
	openaiClient   openAIClientInterface
	maxInputTokens int
}

// NewClient 创建 LLM 客户端，transport 不为 nil 时通过它访问后端（如 SOCKS5 代理）
func NewClient(cfg *config.LLM, transport *http.Transport) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	return &Client{
		config:         cfg,
		openaiClient:   openai.NewClientWithConfig(openaiConfig),
		maxInputTokens: cfg.MaxTokens - 2000, // 预留 2000 tokens 给 system prompt 和输出
	}
}

const meetingExtractionPrompt = `다음 텍스트에서 회의록을 추출해주세요.

출력 형식 (JSON):
{
  "title": "회의 제목",
  "attendees": ["참석자1", "참석자2"],
  "keyPoints": ["주요 안건1", "주요 안건2"],
  "actionItems": [
    {
      "description": "할 일 설명",
      "assignee": "담당자",
      "priority": "high|medium|low",
      "dueDate": "YYYY-MM-DD"
    }
  ],
  "conclusion": "결정사항 및 결론"
}

JSON만 출력하고 다른 내용은 출력하지 마세요.`

const issueExtractionPrompt = `다음 회의록에서 구체적인 작업 이슈들을 추출해주세요.

각 이슈는 다음 형식으로 출력해주세요 (JSON Array):
[
  {
    "title": "이슈 제목 (50자 이내)",
    "description": "상세 설명",
    "assignee": "담당자 이름",
    "priority": "critical|high|medium|low",
    "estimatedHours": 숫자,
    "tags": ["태그1", "태그2"]
  }
]

JSON만 출력하고 다른 내용은 출력하지 마세요.`

// IssueDraft LLM 从会议记录中提取的 issue 草稿，字段尚未校验
type IssueDraft struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Assignee       string       `json:"assignee"`
	Priority       string       `json:"priority"`
	EstimatedHours domain.Hours `json:"estimatedHours"`
	Tags           []string     `json:"tags"`
}

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	// 中日韩文字约 1.5 token/字，其余按空白分词约 1.3 token/词
	cjkChars := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) {
			cjkChars++
		}
	}
	words := len(strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r)
	}))

	tokens := int(float64(cjkChars)*1.5 + float64(words)*1.3)
	if tokens < len(text)/4 {
		// 如果估算值太小，使用字节数的 1/4 作为下限
		tokens = len(text) / 4
	}
	return tokens
}

// splitLinesIntoChunks 将文本行按 token 估算拆分为多个 chunk，单行超限时独占一个 chunk
func splitLinesIntoChunks(lines []string, maxTokensPerChunk int) [][]string {
	if len(lines) == 0 {
		return nil
	}
	chunks := make([][]string, 0)
	current := make([]string, 0)
	currentTokens := 0

	for _, line := range lines {
		tokens := estimateTokens(line)
		if currentTokens+tokens > maxTokensPerChunk && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, line)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// mergeRecords 合并分块抽取的会议记录：参会者按首次出现去重，要点与待办顺序追加，
// 主题取第一块，结论取最后一块
func mergeRecords(parts []*domain.MeetingRecord) *domain.MeetingRecord {
	merged := &domain.MeetingRecord{}
	seen := make(map[string]bool)
	for _, p := range parts {
		if merged.Topic == "" {
			merged.Topic = p.Topic
		}
		for _, name := range p.Participants {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			merged.Participants = append(merged.Participants, name)
		}
		merged.KeyPoints = append(merged.KeyPoints, p.KeyPoints...)
		merged.ActionItems = append(merged.ActionItems, p.ActionItems...)
		if p.Conclusion != "" {
			merged.Conclusion = p.Conclusion
		}
	}
	return merged
}

// ExtractMeeting 从文本中抽取会议记录，文本过长时分块抽取后合并
func (c *Client) ExtractMeeting(ctx context.Context, text string) (*domain.MeetingRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validationf("empty input")
	}

	tokens := estimateTokens(text)
	if tokens <= c.maxInputTokens {
		return c.extractMeetingOnce(ctx, text)
	}

	// Token 超限，分块抽取
	logger.Infof("[LLM] 会议内容过长 (%d tokens)，将拆分为多个 chunk 进行抽取", tokens)
	chunks := splitLinesIntoChunks(strings.Split(text, "\n"), c.maxInputTokens)

	parts := make([]*domain.MeetingRecord, 0, len(chunks))
	for i, lines := range chunks {
		logger.Debugf("[LLM] 处理 chunk %d/%d", i+1, len(chunks))
		chunkText := strings.Join(lines, "\n")
		if strings.TrimSpace(chunkText) == "" {
			continue
		}
		record, err := c.extractMeetingOnce(ctx, chunkText)
		if err != nil {
			return nil, fmt.Errorf("抽取 chunk %d 失败: %w", i+1, err)
		}
		parts = append(parts, record)
	}
	return mergeRecords(parts), nil
}

func (c *Client) extractMeetingOnce(ctx context.Context, text string) (*domain.MeetingRecord, error) {
	content, err := c.chat(ctx, meetingExtractionPrompt, "회의 내용:\n"+text)
	if err != nil {
		return nil, err
	}

	var record domain.MeetingRecord
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return nil, domain.ExternalCallf("解析会议记录 JSON 失败: %w", err)
	}
	return &record, nil
}

// ExtractIssues 从会议记录文本中提取 issue 草稿
func (c *Client) ExtractIssues(ctx context.Context, meetingContent string) ([]IssueDraft, error) {
	if strings.TrimSpace(meetingContent) == "" {
		return nil, domain.Validationf("empty meeting content")
	}

	content, err := c.chat(ctx, issueExtractionPrompt, "회의록:\n"+meetingContent)
	if err != nil {
		return nil, err
	}

	var drafts []IssueDraft
	if err := json.Unmarshal([]byte(content), &drafts); err != nil {
		// 部分模型会把数组包在 {"issues": [...]} 中
		var wrapped struct {
			Issues []IssueDraft `json:"issues"`
		}
		if err2 := json.Unmarshal([]byte(content), &wrapped); err2 != nil || wrapped.Issues == nil {
			return nil, domain.ExternalCallf("解析 issue JSON 失败: %w", err)
		}
		drafts = wrapped.Issues
	}
	return drafts, nil
}

// Transcribe 调用语音转写接口，音频流只能读取一次，因此不做重试
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.openaiClient.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.config.TranscribeModel,
		FilePath: filename,
		Reader:   audio,
		Language: c.config.Language,
	})
	if err != nil {
		return "", domain.ExternalCallf("调用语音转写 API 失败: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", domain.ExternalCallf("语音转写 API 返回空结果")
	}
	logger.Infof("[LLM] 语音文件 %s 转写完成，%d 字", filename, len([]rune(text)))
	return text, nil
}

var errEmptyChoices = errors.New("LLM API 返回空结果")

// chat 执行一次对话请求，失败时按指数退避重试，返回去掉 markdown 代码块后的内容
func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}

	var content string
	operation := func() error {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		resp, err := c.openaiClient.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errEmptyChoices
		}
		content = trimCodeFence(resp.Choices[0].Message.Content)
		return nil
	}

	retries := c.config.RetryTimes
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		logger.Warnf("[LLM] 调用失败，%v 后重试: %v", wait, err)
	})
	if errors.Is(err, errEmptyChoices) {
		return "", domain.ExternalCallf("%w", err)
	}
	if err != nil {
		return "", domain.ExternalCallf("调用 LLM API 失败: %w", err)
	}
	return content, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.TimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.config.TimeoutSeconds)*time.Second)
}

func trimCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
