package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/extractor"
	"github.com/fachebot/meeting-issue-bot/internal/svc"
	"github.com/fachebot/meeting-issue-bot/internal/synthesizer"
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var text, file, thread, channel string
	var demo bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "从文本、文件或聊天线程抽取会议记录，输出 JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := svc.NewServiceContext(cfg)
			if err != nil {
				return err
			}
			defer svcCtx.Close()

			ctx := context.Background()
			in, err := readInput(ctx, svcCtx, text, file, thread, channel, demo)
			if err != nil {
				return err
			}

			record, err := svcCtx.Pipeline.Extract(ctx, in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Meeting notes text")
	cmd.Flags().StringVar(&file, "file-input", "", "Meeting file (.txt .md .doc .docx .pdf .mp3 .wav .m4a)")
	cmd.Flags().StringVar(&thread, "thread", "", "Chat thread JSON file")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel name of the thread")
	cmd.Flags().BoolVar(&demo, "demo", false, "Use the built-in sprint demo thread")
	cmd.MarkFlagsMutuallyExclusive("text", "file-input", "thread", "demo")
	cmd.MarkFlagsOneRequired("text", "file-input", "thread", "demo")

	return cmd
}

func newIssuesCmd() *cobra.Command {
	var recordFile string

	cmd := &cobra.Command{
		Use:   "issues",
		Short: "根据会议记录 JSON 生成 issue 并输出摘要",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readFileOrStdin(cmd.InOrStdin(), recordFile)
			if err != nil {
				return err
			}
			var record domain.MeetingRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return domain.Extractionf("会议记录 JSON 格式错误: %v", err)
			}

			svcCtx, err := svc.NewServiceContext(cfg)
			if err != nil {
				return err
			}
			defer svcCtx.Close()

			generated, err := svcCtx.Pipeline.Synthesize(context.Background(), &record)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), synthesizer.FormatIssuesForDisplay(generated))
			return err
		},
	}

	cmd.Flags().StringVar(&recordFile, "record", "-", "Meeting record JSON file, - for stdin")
	return cmd
}

func readInput(ctx context.Context, svcCtx *svc.ServiceContext, text, file, thread, channel string, demo bool) (adapter.Input, error) {
	switch {
	case demo:
		return adapter.FromThread(extractor.DemoThread(), channel)

	case thread != "":
		raw, err := os.ReadFile(thread)
		if err != nil {
			return adapter.Input{}, err
		}
		var root adapter.ThreadMessage
		if err := json.Unmarshal(raw, &root); err != nil {
			return adapter.Input{}, domain.Validationf("线程 JSON 格式错误: %v", err)
		}
		return adapter.FromThread(root, channel)

	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return adapter.Input{}, err
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return adapter.Input{}, err
		}
		info := adapter.FileInfo{
			Name:        filepath.Base(file),
			Size:        stat.Size(),
			ContentType: mime.TypeByExtension(filepath.Ext(file)),
		}
		return svcCtx.Files.FromFile(ctx, info, f)
	}
	return adapter.FromText(text)
}

func readFileOrStdin(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}
