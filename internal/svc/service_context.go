package svc

import (
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/assign"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/extractor"
	"github.com/fachebot/meeting-issue-bot/internal/issues"
	"github.com/fachebot/meeting-issue-bot/internal/llm"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/metrics"
	"github.com/fachebot/meeting-issue-bot/internal/model"
	"github.com/fachebot/meeting-issue-bot/internal/pipeline"
	"github.com/fachebot/meeting-issue-bot/internal/synthesizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	DB             *sql.DB
	TransportProxy *http.Transport
	MeetingModel   *model.MeetingModel
	IssueModel     *model.IssueModel
	LLMClient      *llm.Client
	Registry       *prometheus.Registry
	Metrics        *metrics.Metrics
	Files          *adapter.FileAdapter
	Board          *issues.Board
	Pipeline       *pipeline.Pipeline
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	// 创建数据库连接
	db, err := model.Open(c.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("创建SOCKS5代理失败: %w", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	svcCtx := &ServiceContext{
		Config:         c,
		DB:             db,
		TransportProxy: transportProxy,
		MeetingModel:   model.NewMeetingModel(db),
		IssueModel:     model.NewIssueModel(db),
		Registry:       registry,
		Metrics:        m,
	}

	// 未配置 API Key 时不创建客户端，接口值保持为 nil
	var meetingExtractor extractor.MeetingExtractor
	var issueExtractor synthesizer.IssueExtractor
	var transcriber adapter.Transcriber
	if c.LLM.Enabled() {
		svcCtx.LLMClient = llm.NewClient(&c.LLM, transportProxy)
		meetingExtractor = svcCtx.LLMClient
		issueExtractor = svcCtx.LLMClient
		if c.LLM.TranscribeModel != "" {
			transcriber = svcCtx.LLMClient
		}
		logger.Infof("[Svc] 已启用 LLM 后端: %s, model: %s", c.LLM.BaseURL, c.LLM.Model)
	}

	seed := c.Pipeline.RandomSeed
	assigner := assign.New(c.Pipeline.AssignMode, c.Pipeline.Roster, assign.NewRand(seed))

	ext, err := extractor.New(c, meetingExtractor, assigner)
	if err != nil {
		db.Close()
		return nil, err
	}
	syn, err := synthesizer.New(c, issueExtractor, synthesizer.Options{
		Assigner: assigner,
		Dice:     assign.NewDice(assign.NewRand(seed)),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	svcCtx.Files = adapter.NewFileAdapter(adapter.DefaultMaxFileSize, transcriber)
	svcCtx.Board = issues.NewBoard(time.Duration(c.Issues.RegisterDelayMs)*time.Millisecond, svcCtx.IssueModel, m)
	svcCtx.Pipeline = pipeline.New(ext, syn, svcCtx.Board, svcCtx.MeetingModel, m,
		time.Duration(c.Pipeline.PhaseIntervalMs)*time.Millisecond)

	logger.Infof("[Svc] 抽取策略: %s, issue 生成策略: %s", ext.Name(), syn.Name())
	return svcCtx, nil
}

func (svcCtx *ServiceContext) Close() {
	svcCtx.Board.Close()
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("关闭数据库失败, %v", err)
	}
}
