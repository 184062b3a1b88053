package issues

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/metrics"
)

// DefaultRegisterDelay 登记确认的展示时长
const DefaultRegisterDelay = 3500 * time.Millisecond

// RegisteredMessage 登记中的确认提示
const RegisteredMessage = "이슈 트래커에 등록되었습니다"

// Status 待处理 issue 的状态：pending -> registering -> (移除)
type Status string

const (
	StatusPending     Status = "pending"
	StatusRegistering Status = "registering"
)

// Entry 看板中的一条待处理 issue
type Entry struct {
	domain.GeneratedIssue
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Registrar 登记 issue 的目标存储（便于测试注入 mock）
type Registrar interface {
	Register(ctx context.Context, issue domain.GeneratedIssue) error
}

// Board 待登记 issue 看板，最新生成的排在最前，并发安全
type Board struct {
	mu        sync.Mutex
	entries   []*Entry
	timers    map[string]*time.Timer
	delay     time.Duration
	registrar Registrar
	metrics   *metrics.Metrics
	closed    bool
}

func NewBoard(delay time.Duration, registrar Registrar, m *metrics.Metrics) *Board {
	if delay < 0 {
		delay = DefaultRegisterDelay
	}
	return &Board{
		timers:    make(map[string]*time.Timer),
		delay:     delay,
		registrar: registrar,
		metrics:   m,
	}
}

// Prepend 将一批新 issue 插入到最前面，批内顺序保持不变
// ID 与已有 issue 或批内重复时整批拒绝
func (b *Board) Prepend(batch []domain.GeneratedIssue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(b.entries)+len(batch))
	for _, e := range b.entries {
		seen[e.ID] = true
	}
	added := make([]*Entry, 0, len(batch)+len(b.entries))
	for _, issue := range batch {
		if seen[issue.ID] {
			return domain.Validationf("issue id %q 重复", issue.ID)
		}
		seen[issue.ID] = true
		if err := issue.Validate(); err != nil {
			return domain.Validationf("%v", err)
		}
		added = append(added, &Entry{GeneratedIssue: issue.Clone(), Status: StatusPending})
	}

	b.entries = append(added, b.entries...)
	b.metrics.SetPending(len(b.entries))
	return nil
}

// List 返回当前全部待处理 issue 的副本
func (b *Board) List() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		list[i] = Entry{GeneratedIssue: e.Clone(), Status: e.Status, Message: e.Message}
	}
	return list
}

// Len 待处理 issue 数量
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Get 返回 issue 的副本，供编辑使用
func (b *Board) Get(id string) (domain.GeneratedIssue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(id)
	if e == nil {
		return domain.GeneratedIssue{}, fmt.Errorf("%w: issue %s", domain.ErrNotFound, id)
	}
	return e.Clone(), nil
}

// Update 按 ID 整体替换 issue，正在登记的 issue 不能编辑
func (b *Board) Update(issue domain.GeneratedIssue) error {
	if err := issue.Validate(); err != nil {
		return domain.Validationf("%v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(issue.ID)
	if e == nil {
		return fmt.Errorf("%w: issue %s", domain.ErrNotFound, issue.ID)
	}
	if e.Status == StatusRegistering {
		return fmt.Errorf("%w: issue %s 正在登记", domain.ErrBusy, issue.ID)
	}
	e.GeneratedIssue = issue.Clone()
	return nil
}

// Register 将 issue 标记为登记中，延迟后写入登记存储并从看板移除
// issue 不存在或已在登记中时不做任何事，返回 false
func (b *Board) Register(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(id)
	if b.closed || e == nil || e.Status == StatusRegistering {
		return false
	}
	e.Status = StatusRegistering
	e.Message = RegisteredMessage
	b.timers[id] = time.AfterFunc(b.delay, func() { b.complete(id) })
	logger.Infof("[Board] issue %s 开始登记: %s", id, e.Title)
	return true
}

// complete 登记成功后恰好移除一个 issue；存储失败时 issue 恢复为 pending
func (b *Board) complete(id string) {
	b.mu.Lock()
	delete(b.timers, id)
	e := b.find(id)
	if e == nil || e.Status != StatusRegistering {
		b.mu.Unlock()
		return
	}
	issue := e.Clone()
	b.mu.Unlock()

	var err error
	if b.registrar != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = b.registrar.Register(ctx, issue)
		cancel()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.IssueRegistered(err == nil)
	if err != nil {
		logger.Errorf("[Board] issue %s 登记失败: %v", id, err)
		if e := b.find(id); e != nil {
			e.Status = StatusPending
			e.Message = ""
		}
		return
	}

	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	b.metrics.SetPending(len(b.entries))
	logger.Infof("[Board] issue %s 已登记", id)
}

// Close 停止尚未触发的登记定时器
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

func (b *Board) find(id string) *Entry {
	for _, e := range b.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}
