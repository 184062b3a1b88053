package main

import (
	"os"

	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meeting-issue-bot",
		Short:         "将会议对话、文件与纪要转换为会议记录和待登记 issue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 读取配置文件
			c, err := config.LoadFromFile(configFile)
			if err != nil {
				return err
			}
			if err := logger.Setup(c.Log); err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "file", "f", "etc/config.yaml", "the config file")
	root.AddCommand(newServeCmd(), newExtractCmd(), newIssuesCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
