package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fachebot/meeting-issue-bot/internal/httpapi"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/scheduler"
	"github.com/fachebot/meeting-issue-bot/internal/svc"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 与收件箱调度器",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 创建服务上下文
			svcCtx, err := svc.NewServiceContext(cfg)
			if err != nil {
				return err
			}
			defer svcCtx.Close()

			// 创建并启动调度器
			var schedulerInstance *scheduler.Scheduler
			if cfg.Inbox.Enable {
				schedulerInstance = scheduler.NewScheduler(svcCtx.Files, svcCtx.Pipeline, svcCtx.Metrics, &cfg.Inbox)
				if err := schedulerInstance.Start(); err != nil {
					return fmt.Errorf("[Scheduler] 启动调度器失败: %w", err)
				}
			}

			server := httpapi.New(httpapi.Deps{
				Pipeline: svcCtx.Pipeline,
				Board:    svcCtx.Board,
				Files:    svcCtx.Files,
				Meetings: svcCtx.MeetingModel,
				Issues:   svcCtx.IssueModel,
				Gatherer: svcCtx.Registry,
			})
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(cfg.Server.Listen)
			}()

			// 等待程序退出
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-ch:
			case err = <-errCh:
				if err != nil {
					logger.Errorf("[HTTP] 服务异常退出: %v", err)
				}
			}

			// 优雅关闭
			logger.Infof("正在关闭服务...")
			if schedulerInstance != nil {
				schedulerInstance.Stop()
			}
			ctx, cancel := context.WithTimeout(context.Background(), httpapi.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Errorf("[HTTP] 关闭失败, %v", err)
			}
			logger.Infof("服务已停止")
			return err
		},
	}
}
