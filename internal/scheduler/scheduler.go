package scheduler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/metrics"
	"github.com/robfig/cron/v3"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Pipeline 收件箱文件的处理流程
type Pipeline interface {
	Extract(ctx context.Context, in adapter.Input) (*domain.MeetingRecord, error)
	Synthesize(ctx context.Context, record *domain.MeetingRecord) ([]domain.GeneratedIssue, error)
}

// Scheduler 按 cron 表达式扫描收件箱目录，将会议文件转换为待登记 issue
// 处理成功的文件移动到 processed/，失败的移动到 failed/
type Scheduler struct {
	cron          *cron.Cron
	files         *adapter.FileAdapter
	pipeline      Pipeline
	metrics       *metrics.Metrics
	config        *config.Inbox
	retryTimes    int
	retryInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
	scanning      sync.Mutex
}

// locUTC UTC 标准时间（UTC）
var locUTC = time.UTC

func NewScheduler(files *adapter.FileAdapter, pipeline Pipeline, m *metrics.Metrics, cfg *config.Inbox) *Scheduler {
	retryTimes := cfg.RetryTimes
	if retryTimes <= 0 {
		retryTimes = 3
	}
	retryInterval := time.Duration(cfg.RetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 10 * time.Second
	}

	return &Scheduler{
		cron:          cron.New(cron.WithLocation(locUTC)),
		files:         files,
		pipeline:      pipeline,
		metrics:       m,
		config:        cfg,
		retryTimes:    retryTimes,
		retryInterval: retryInterval,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := os.MkdirAll(s.config.Dir, 0755); err != nil {
		return fmt.Errorf("创建收件箱目录失败: %w", err)
	}

	// 注册收件箱扫描任务
	_, err := s.cron.AddFunc(s.config.Cron, s.runInbox)
	if err != nil {
		return fmt.Errorf("注册收件箱扫描任务失败: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，收件箱: %s, 扫描任务: %s", s.config.Dir, s.config.Cron)

	// 启动时先处理停机期间积压的文件
	go s.runInbox()

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

// runInbox 执行一次收件箱扫描（cron 触发），上一次扫描未结束时跳过
func (s *Scheduler) runInbox() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	if !s.scanning.TryLock() {
		logger.Debugf("[Scheduler] 上一次扫描尚未结束，跳过")
		return
	}
	defer s.scanning.Unlock()

	processed, failed, err := s.ScanOnce(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] 扫描收件箱失败: %v", err)
		return
	}
	if processed+failed > 0 {
		logger.Infof("[Scheduler] 收件箱处理完成: 成功 %d 个，失败 %d 个", processed, failed)
	}
}

// ScanOnce 按文件名顺序处理收件箱中所有支持的文件
func (s *Scheduler) ScanOnce(ctx context.Context) (processed, failed int, err error) {
	entries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return 0, 0, fmt.Errorf("读取收件箱目录失败: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && adapter.SupportedExtension(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-ctx.Done():
			return processed, failed, fmt.Errorf("任务已取消")
		default:
		}

		path := filepath.Join(s.config.Dir, name)
		target := ProcessedDir
		if err := s.processFile(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) {
				return processed, failed, fmt.Errorf("任务已取消")
			}
			logger.Errorf("[Scheduler] 处理文件 %s 失败: %v", name, err)
			target = FailedDir
			failed++
		} else {
			processed++
		}

		s.metrics.InboxFile(target)
		if err := moveFile(path, filepath.Join(s.config.Dir, target)); err != nil {
			logger.Errorf("[Scheduler] 移动文件 %s 到 %s 失败: %v", name, target, err)
		}
	}
	return processed, failed, nil
}

// processFile 文件 -> 会议记录 -> issue
func (s *Scheduler) processFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取文件信息失败: %w", err)
	}

	name := filepath.Base(path)
	info := adapter.FileInfo{
		Name:        name,
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
	}
	in, err := s.files.FromFile(ctx, info, f)
	if err != nil {
		return err
	}

	var record *domain.MeetingRecord
	err = s.retry(ctx, name, "抽取会议记录", func() error {
		var err error
		record, err = s.pipeline.Extract(ctx, in)
		return err
	})
	if err != nil {
		return err
	}

	var generated []domain.GeneratedIssue
	err = s.retry(ctx, name, "生成 issue", func() error {
		var err error
		generated, err = s.pipeline.Synthesize(ctx, record)
		return err
	})
	if err != nil {
		return err
	}

	logger.Infof("[Scheduler] 文件 %s: 会议 %s 生成 %d 个 issue", name, record.Topic, len(generated))
	return nil
}

// retry 对 pipeline 忙碌与外部调用失败进行重试，其余错误直接返回
func (s *Scheduler) retry(ctx context.Context, name, step string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn()
		if err == nil || !retryable(err) {
			return err
		}

		logger.Warnf("[Scheduler] 文件 %s: %s失败 (第 %d/%d 次): %v", name, step, attempt, s.retryTimes, err)
		if attempt < s.retryTimes {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryInterval):
			}
		}
	}
	return fmt.Errorf("%s失败，已重试 %d 次: %w", step, s.retryTimes, err)
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrBusy) || errors.Is(err, domain.ErrExternalCall)
}

// moveFile 将文件移动到 dir 中，目标已存在时加时间戳前缀
func moveFile(path, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, time.Now().In(locUTC).Format("20060102150405")+"_"+filepath.Base(path))
	}
	return os.Rename(path, target)
}
