package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/extractor"
	"github.com/fachebot/meeting-issue-bot/internal/issues"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/metrics"
	"github.com/fachebot/meeting-issue-bot/internal/progress"
	"github.com/fachebot/meeting-issue-bot/internal/synthesizer"
)

// CancelledReason 被取消的任务的失败原因
const CancelledReason = "cancelled"

// Stage 当前执行的步骤
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageSynthesis  Stage = "synthesis"
)

// Status pipeline 状态
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State pipeline 状态快照，Phase 仅在 Running 时有意义，Reason 仅在 Failed 时有值
type State struct {
	Status Status            `json:"status"`
	Stage  Stage             `json:"stage,omitempty"`
	Phase  progress.Snapshot `json:"phase"`
	Reason string            `json:"reason,omitempty"`
}

// Archive 会议记录归档
type Archive interface {
	Save(ctx context.Context, record *domain.MeetingRecord, raw string) (int64, error)
}

// Pipeline 输入 -> 会议记录 -> issue 的处理流程
// 同一时刻只允许一个任务执行，失败或被取消的任务不会修改已保存的会议记录与 issue
type Pipeline struct {
	mu          sync.Mutex
	extractor   extractor.Strategy
	synthesizer synthesizer.Strategy
	board       *issues.Board
	archive     Archive
	metrics     *metrics.Metrics
	interval    time.Duration

	state  State
	record *domain.MeetingRecord
	gen    uint64
	cancel context.CancelFunc
}

func New(ext extractor.Strategy, syn synthesizer.Strategy, board *issues.Board, archive Archive, m *metrics.Metrics, interval time.Duration) *Pipeline {
	return &Pipeline{
		extractor:   ext,
		synthesizer: syn,
		board:       board,
		archive:     archive,
		metrics:     m,
		interval:    interval,
	}
}

// run 一次正在执行的任务
type run struct {
	gen     uint64
	stage   Stage
	ctx     context.Context
	cancel  context.CancelFunc
	seq     *progress.Sequencer
	started time.Time
}

// State 当前状态
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Record 当前会议记录的副本，尚未抽取时返回 nil
func (p *Pipeline) Record() *domain.MeetingRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.record == nil {
		return nil
	}
	c := p.record.Clone()
	return &c
}

// Extract 从归一化输入中抽取会议记录，成功后替换当前记录并归档
func (p *Pipeline) Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error) {
	if in.Blank() {
		return nil, domain.Validationf("empty input")
	}

	r, err := p.begin(ctx, StageExtraction, progress.ExtractionPhases)
	if err != nil {
		return nil, err
	}

	record, err := p.extractor.Extract(r.ctx, in)
	if err == nil && record == nil {
		err = domain.Extractionf("empty record")
	}
	if err == nil && record.Source.Type == "" {
		record.Source = in.Source
	}
	err = p.end(r, err, func() error {
		c := record.Clone()
		p.record = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[Pipeline] 会议记录抽取完成, strategy: %s, topic: %s, 参会者: %d, 待办: %d",
		p.extractor.Name(), record.Topic, len(record.Participants), len(record.ActionItems))

	if p.archive != nil {
		id, err := p.archive.Save(context.WithoutCancel(ctx), record, rawText(in))
		if err != nil {
			logger.Errorf("[Pipeline] 归档会议记录失败: %v", err)
		} else {
			logger.Debugf("[Pipeline] 会议记录已归档, id: %d", id)
		}
	}

	c := record.Clone()
	return &c, nil
}

// Synthesize 根据会议记录生成 issue，成功后插入到待处理看板最前面
func (p *Pipeline) Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error) {
	if record == nil {
		return nil, domain.Synthesisf("会议记录为空")
	}

	r, err := p.begin(ctx, StageSynthesis, progress.SynthesisPhases)
	if err != nil {
		return nil, err
	}

	generated, err := p.synthesizer.Synthesize(r.ctx, record)
	err = p.end(r, err, func() error {
		if p.board == nil {
			return nil
		}
		return p.board.Prepend(generated)
	})
	if err != nil {
		return nil, err
	}

	p.metrics.IssuesGenerated(len(generated))
	logger.Infof("[Pipeline] issue 生成完成, strategy: %s, 数量: %d", p.synthesizer.Name(), len(generated))
	return generated, nil
}

// SynthesizeCurrent 使用当前会议记录生成 issue
func (p *Pipeline) SynthesizeCurrent(ctx context.Context) ([]domain.GeneratedIssue, error) {
	record := p.Record()
	if record == nil {
		return nil, domain.Synthesisf("尚未抽取会议记录")
	}
	return p.Synthesize(ctx, record)
}

// UpdateRecordJSON 用编辑后的原始 JSON 整体替换当前会议记录
func (p *Pipeline) UpdateRecordJSON(raw []byte) (*domain.MeetingRecord, error) {
	var record domain.MeetingRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.Extractionf("会议记录 JSON 格式错误: %v", err)
	}
	if err := record.Validate(); err != nil {
		return nil, domain.Extractionf("%v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Status == StatusRunning {
		return nil, fmt.Errorf("%w: 任务执行中，无法修改会议记录", domain.ErrBusy)
	}
	if record.Source == (domain.Source{}) && p.record != nil {
		record.Source = p.record.Source
	}
	p.record = &record

	c := record.Clone()
	return &c, nil
}

// Cancel 取消正在执行的任务，没有任务时返回 false
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Status != StatusRunning {
		return false
	}
	p.gen++
	p.state = State{Status: StatusFailed, Stage: p.state.Stage, Reason: CancelledReason}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	logger.Infof("[Pipeline] 任务已取消")
	return true
}

func (p *Pipeline) begin(ctx context.Context, stage Stage, phases []string) (*run, error) {
	p.mu.Lock()
	if p.state.Status == StatusRunning {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s 执行中", domain.ErrBusy, p.state.Stage)
	}

	p.gen++
	r := &run{gen: p.gen, stage: stage, started: time.Now()}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.seq = progress.NewSequencer(phases, p.interval, func(snap progress.Snapshot) {
		p.onPhase(r.gen, snap)
	})
	p.cancel = r.cancel
	p.state = State{Status: StatusRunning, Stage: stage}
	p.mu.Unlock()

	_ = r.seq.Start() // 新建的序列不会重复启动
	go r.seq.Drive(r.ctx)
	return r, nil
}

// end 结束任务：成功时按顺序补齐剩余阶段并提交结果，失败时取消阶段序列
func (p *Pipeline) end(r *run, err error, commit func() error) error {
	if err == nil {
		r.seq.Finish()
	} else {
		r.seq.Cancel()
	}
	r.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(r.started)
	if r.gen != p.gen {
		p.metrics.ObserveRun(string(r.stage), CancelledReason, elapsed)
		return fmt.Errorf("%s 已取消: %w", r.stage, context.Canceled)
	}
	p.cancel = nil

	if err == nil {
		err = commit()
	}
	if err != nil {
		p.state = State{Status: StatusFailed, Stage: r.stage, Reason: err.Error()}
		p.metrics.ObserveRun(string(r.stage), "failed", elapsed)
		logger.Warnf("[Pipeline] %s 失败: %v", r.stage, err)
		return err
	}

	p.state = State{Status: StatusSucceeded, Stage: r.stage, Phase: r.seq.Snapshot()}
	p.metrics.ObserveRun(string(r.stage), "succeeded", elapsed)
	return nil
}

func (p *Pipeline) onPhase(gen uint64, snap progress.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || p.state.Status != StatusRunning {
		return
	}
	p.state.Phase = snap
	if snap.State != progress.StateRunning {
		return
	}
	logger.Debugf("[Pipeline] %s 阶段 %d/%d %s", p.state.Stage, snap.Phase, snap.Total, snap.Label)
}

func rawText(in adapter.Input) string {
	if in.Text != "" {
		return in.Text
	}
	raw, _ := json.Marshal(in.Messages)
	return string(raw)
}
