package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	ExtractionHeuristic = "heuristic"
	ExtractionCanned    = "canned"
	ExtractionLLM       = "llm"

	SynthesisRule    = "rule"
	SynthesisKeyword = "keyword"
	SynthesisLLM     = "llm"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

// LLM 兼容 OpenAI API 的后端，可通过 MEETBOT_LLM_* 环境变量覆盖
type LLM struct {
	BaseURL         string `yaml:"BaseURL" envconfig:"MEETBOT_LLM_BASE_URL"`
	APIKey          string `yaml:"APIKey" envconfig:"MEETBOT_LLM_API_KEY"`
	Model           string `yaml:"Model" envconfig:"MEETBOT_LLM_MODEL"`
	TranscribeModel string `yaml:"TranscribeModel" envconfig:"MEETBOT_LLM_TRANSCRIBE_MODEL"` // 语音转写模型，如 whisper-1
	Language        string `yaml:"Language" envconfig:"MEETBOT_LLM_LANGUAGE"`                 // 语音转写语言
	MaxTokens       int    `yaml:"MaxTokens" envconfig:"MEETBOT_LLM_MAX_TOKENS"`              // 模型上下文窗口大小
	RetryTimes      int    `yaml:"RetryTimes" envconfig:"MEETBOT_LLM_RETRY_TIMES"`            // 调用失败重试次数
	TimeoutSeconds  int    `yaml:"TimeoutSeconds" envconfig:"MEETBOT_LLM_TIMEOUT_SECONDS"`    // 单次请求超时
}

// Enabled 是否配置了真实的 LLM 后端
func (l LLM) Enabled() bool {
	return l.APIKey != ""
}

type Pipeline struct {
	ExtractionMode    string   `yaml:"ExtractionMode"`    // heuristic / canned / llm
	SynthesisMode     string   `yaml:"SynthesisMode"`     // rule / keyword / llm
	PhaseIntervalMs   int      `yaml:"PhaseIntervalMs"`   // 进度阶段间隔，默认 600
	SimulatedSteps    int      `yaml:"SimulatedSteps"`    // 模拟处理等待次数，默认 5
	SimulatedStepMs   int      `yaml:"SimulatedStepMs"`   // 每次等待时长，默认 600
	KnownParticipants []string `yaml:"KnownParticipants"` // 启发式抽取时识别的成员名
	Placeholders      []string `yaml:"Placeholders"`      // 未识别出成员时的占位名
	Roster            []string `yaml:"Roster"`            // 自动分配负责人的成员列表
	AssignMode        string   `yaml:"AssignMode"`        // round_robin / random
	KeyPointLimit     int      `yaml:"KeyPointLimit"`
	ActionItemLimit   int      `yaml:"ActionItemLimit"`
	KeywordIssueLimit int      `yaml:"KeywordIssueLimit"`
	DueInDays         int      `yaml:"DueInDays"`
	RandomSeed        uint64   `yaml:"RandomSeed"` // 0 表示随机种子
}

type Issues struct {
	RegisterDelayMs int `yaml:"RegisterDelayMs"` // 登记确认展示时长，默认 3500
}

type Storage struct {
	DBPath string `yaml:"DBPath"`
}

type Inbox struct {
	Enable        bool   `yaml:"Enable"`
	Dir           string `yaml:"Dir"`
	Cron          string `yaml:"Cron"`          // cron 表达式，如 "*/5 * * * *"
	RetryTimes    int    `yaml:"RetryTimes"`    // 失败重试次数，默认 3
	RetryInterval int    `yaml:"RetryInterval"` // 重试间隔（秒），默认 10
}

type Server struct {
	Listen string `yaml:"Listen"`
}

type Log struct {
	Dir   string `yaml:"Dir"`
	File  string `yaml:"File"`
	Level string `yaml:"Level"`
}

type Config struct {
	Sock5Proxy Sock5Proxy `yaml:"Sock5Proxy"`
	LLM        LLM        `yaml:"LLM"`
	Pipeline   Pipeline   `yaml:"Pipeline"`
	Issues     Issues     `yaml:"Issues"`
	Storage    Storage    `yaml:"Storage"`
	Inbox      Inbox      `yaml:"Inbox"`
	Server     Server     `yaml:"Server"`
	Log        Log        `yaml:"Log"`
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}

	// .env 与环境变量中的密钥优先于配置文件
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}
	if err := envconfig.Process("", &c.LLM); err != nil {
		return nil, fmt.Errorf("读取 LLM 环境变量失败: %w", err)
	}

	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TranscribeModel == "" {
		c.LLM.TranscribeModel = "whisper-1"
	}
	if c.LLM.Language == "" {
		c.LLM.Language = "ko"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 16000
	}
	if c.LLM.RetryTimes == 0 {
		c.LLM.RetryTimes = 2
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}

	if c.Pipeline.ExtractionMode == "" {
		c.Pipeline.ExtractionMode = ExtractionHeuristic
	}
	if c.Pipeline.SynthesisMode == "" {
		c.Pipeline.SynthesisMode = SynthesisRule
	}
	if c.Pipeline.PhaseIntervalMs == 0 {
		c.Pipeline.PhaseIntervalMs = 600
	}
	if c.Pipeline.SimulatedSteps == 0 {
		c.Pipeline.SimulatedSteps = 5
	}
	if c.Pipeline.SimulatedStepMs == 0 {
		c.Pipeline.SimulatedStepMs = 600
	}
	if len(c.Pipeline.KnownParticipants) == 0 {
		c.Pipeline.KnownParticipants = []string{"임현우", "김개발", "박디자인", "이백엔드", "최테스터"}
	}
	if len(c.Pipeline.Placeholders) == 0 {
		c.Pipeline.Placeholders = []string{"참여자1", "참여자2"}
	}
	if len(c.Pipeline.Roster) == 0 {
		c.Pipeline.Roster = []string{"임현우", "김개발", "박디자인", "이백엔드"}
	}
	if c.Pipeline.AssignMode == "" {
		c.Pipeline.AssignMode = "round_robin"
	}
	if c.Pipeline.KeyPointLimit == 0 {
		c.Pipeline.KeyPointLimit = 3
	}
	if c.Pipeline.ActionItemLimit == 0 {
		c.Pipeline.ActionItemLimit = 2
	}
	if c.Pipeline.KeywordIssueLimit == 0 {
		c.Pipeline.KeywordIssueLimit = 3
	}
	if c.Pipeline.DueInDays == 0 {
		c.Pipeline.DueInDays = 7
	}

	if c.Issues.RegisterDelayMs == 0 {
		c.Issues.RegisterDelayMs = 3500
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/meetings.db"
	}
	if c.Inbox.Dir == "" {
		c.Inbox.Dir = "data/inbox"
	}
	if c.Inbox.Cron == "" {
		c.Inbox.Cron = "*/5 * * * *"
	}
	if c.Inbox.RetryTimes == 0 {
		c.Inbox.RetryTimes = 3
	}
	if c.Inbox.RetryInterval == 0 {
		c.Inbox.RetryInterval = 10
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.File == "" {
		c.Log.File = "meeting-bot.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 LLM
	if c.LLM.MaxTokens <= 2000 {
		return fmt.Errorf("LLM.MaxTokens 必须大于 2000")
	}
	if c.LLM.RetryTimes < 0 {
		return fmt.Errorf("LLM.RetryTimes 必须 >= 0")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return fmt.Errorf("LLM.TimeoutSeconds 必须 >= 0")
	}

	// 验证 Pipeline
	switch c.Pipeline.ExtractionMode {
	case ExtractionHeuristic, ExtractionCanned:
	case ExtractionLLM:
		if !c.LLM.Enabled() {
			return fmt.Errorf("Pipeline.ExtractionMode 为 'llm' 时 LLM.APIKey 不能为空")
		}
	default:
		return fmt.Errorf("Pipeline.ExtractionMode 必须是 'heuristic', 'canned' 或 'llm'")
	}
	switch c.Pipeline.SynthesisMode {
	case SynthesisRule, SynthesisKeyword:
	case SynthesisLLM:
		if !c.LLM.Enabled() {
			return fmt.Errorf("Pipeline.SynthesisMode 为 'llm' 时 LLM.APIKey 不能为空")
		}
	default:
		return fmt.Errorf("Pipeline.SynthesisMode 必须是 'rule', 'keyword' 或 'llm'")
	}
	if c.Pipeline.AssignMode != "round_robin" && c.Pipeline.AssignMode != "random" {
		return fmt.Errorf("Pipeline.AssignMode 必须是 'round_robin' 或 'random'")
	}
	if c.Pipeline.PhaseIntervalMs < 0 || c.Pipeline.SimulatedStepMs < 0 || c.Pipeline.SimulatedSteps < 0 {
		return fmt.Errorf("Pipeline 的时长与次数必须 >= 0")
	}
	if c.Pipeline.KeyPointLimit < 0 || c.Pipeline.ActionItemLimit < 0 || c.Pipeline.KeywordIssueLimit < 0 {
		return fmt.Errorf("Pipeline 的数量上限必须 >= 0")
	}

	// 验证 Issues
	if c.Issues.RegisterDelayMs < 0 {
		return fmt.Errorf("Issues.RegisterDelayMs 必须 >= 0")
	}

	// 验证 Inbox
	if c.Inbox.Enable && c.Inbox.Dir == "" {
		return fmt.Errorf("Inbox.Dir 不能为空（当 Inbox.Enable 为 true 时）")
	}
	if c.Inbox.RetryTimes < 0 {
		return fmt.Errorf("Inbox.RetryTimes 必须 >= 0")
	}
	if c.Inbox.RetryInterval < 0 {
		return fmt.Errorf("Inbox.RetryInterval 必须 >= 0")
	}

	return nil
}
