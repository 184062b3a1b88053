package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultInterval 默认每个阶段的展示时长
const DefaultInterval = 600 * time.Millisecond

var (
	// ExtractionPhases 会议记录抽取阶段
	ExtractionPhases = []string{
		"입력 내용 분석",
		"참석자 식별",
		"주요 안건 추출",
		"액션 아이템 정리",
		"회의록 생성",
	}

	// SynthesisPhases issue 生成阶段
	SynthesisPhases = []string{
		"회의록 내용 분석",
		"작업 항목 추출",
		"우선순위 설정",
		"담당자 자동 할당",
		"예상 시간 산정",
		"이슈 트래커 등록",
	}
)

var ErrAlreadyStarted = errors.New("sequencer already started")

// State 阶段序列状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Snapshot 某一时刻的阶段信息，Phase 从 1 开始，Idle 时为 0
type Snapshot struct {
	State State  `json:"-"`
	Phase int    `json:"phase"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// Sequencer 展示用的阶段状态机：idle -> phase_1 -> ... -> phase_N -> done
// 既可以由 Drive 按固定间隔推进，也可以通过 Advance 显式推进
// 定时推进最多停在 phase_N，只有 Finish/Advance 才能进入 done。onChange 中不能再调用 Advance/Cancel
type Sequencer struct {
	emitMu   sync.Mutex // 保证回调按状态变化顺序触发
	mu       sync.Mutex
	labels   []string
	interval time.Duration
	state    State
	phase    int
	ended    chan struct{} // 进入 done/cancelled 时关闭
	onChange func(Snapshot)
}

func NewSequencer(labels []string, interval time.Duration, onChange func(Snapshot)) *Sequencer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sequencer{
		labels:   append([]string(nil), labels...),
		interval: interval,
		ended:    make(chan struct{}),
		onChange: onChange,
	}
}

// Snapshot 当前阶段
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sequencer) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Phase: s.phase, Total: len(s.labels)}
	if s.phase > 0 && s.phase <= len(s.labels) {
		snap.Label = s.labels[s.phase-1]
	}
	return snap
}

// Start idle -> phase_1（没有阶段时直接 done）
func (s *Sequencer) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.mu.Unlock()
	s.Advance()
	return nil
}

// Advance 推进一个阶段，返回推进后的快照；已结束时返回 false
func (s *Sequencer) Advance() (Snapshot, bool) {
	return s.step(true)
}

// tick 定时推进，停在最后一个阶段等待 Finish
func (s *Sequencer) tick() (Snapshot, bool) {
	return s.step(false)
}

func (s *Sequencer) step(complete bool) (Snapshot, bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state != StateRunning || (!complete && s.phase >= len(s.labels)) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	if s.phase < len(s.labels) {
		s.phase++
	} else {
		s.state = StateDone
		close(s.ended)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, true
}

// Finish 按顺序推进剩余阶段直至 done，不跳过任何阶段
func (s *Sequencer) Finish() {
	for {
		if _, ok := s.Advance(); !ok {
			return
		}
	}
}

// Cancel 取消序列，已结束的序列不受影响
func (s *Sequencer) Cancel() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state != StateRunning && s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	close(s.ended)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Run 启动并按固定间隔推进，直到被 Finish/Cancel 结束或 ctx 取消
func (s *Sequencer) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Drive(ctx)
}

// Drive 对已启动的序列按固定间隔推进，序列被 Finish/Cancel 结束时返回
func (s *Sequencer) Drive(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Cancel()
			if s.Snapshot().State == StateDone {
				return nil
			}
			return ctx.Err()
		case <-s.ended:
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sequencer) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// Wait 模拟处理耗时：分 steps 次等待，每次 interval，可被 ctx 取消
func Wait(ctx context.Context, steps int, interval time.Duration) error {
	for i := 0; i < steps; i++ {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ctx.Err()
}
