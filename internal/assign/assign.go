package assign

import (
	"math/rand/v2"
	"sync"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

const (
	ModeRoundRobin = "round_robin"
	ModeRandom     = "random"
)

// DefaultRoster 默认可分配的成员
var DefaultRoster = []string{"임현우", "김개발", "박디자인", "이백엔드"}

// Assigner 从成员列表中挑选负责人
type Assigner interface {
	Next() string
}

// RoundRobin 轮流分配
type RoundRobin struct {
	mu     sync.Mutex
	roster []string
	next   int
}

func NewRoundRobin(roster []string) *RoundRobin {
	return &RoundRobin{roster: append([]string(nil), roster...)}
}

func (r *RoundRobin) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.roster) == 0 {
		return ""
	}
	name := r.roster[r.next%len(r.roster)]
	r.next++
	return name
}

// Random 随机分配
type Random struct {
	mu     sync.Mutex
	roster []string
	rnd    *rand.Rand
}

func NewRandom(roster []string, rnd *rand.Rand) *Random {
	return &Random{roster: append([]string(nil), roster...), rnd: rnd}
}

func (r *Random) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.roster) == 0 {
		return ""
	}
	return r.roster[r.rnd.IntN(len(r.roster))]
}

// New 按模式创建 Assigner，未知模式按轮流分配处理
func New(mode string, roster []string, rnd *rand.Rand) Assigner {
	if len(roster) == 0 {
		roster = DefaultRoster
	}
	if mode == ModeRandom {
		return NewRandom(roster, rnd)
	}
	return NewRoundRobin(roster)
}

// Dice 随机抽取优先级与工时，并发安全
type Dice struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDice(rnd *rand.Rand) *Dice {
	return &Dice{rnd: rnd}
}

// Priority 从四个优先级中随机抽取
func (d *Dice) Priority() domain.Priority {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.Priorities[d.rnd.IntN(len(domain.Priorities))]
}

// Hours 在 [min, max] 范围内随机抽取整数工时
func (d *Dice) Hours(min, max int) domain.Hours {
	if max < min {
		min, max = max, min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.Hours(min + d.rnd.IntN(max-min+1))
}

// NewRand 创建随机源，seed 为 0 时使用随机种子
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}
