package adapter

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// DefaultMaxFileSize 上传文件大小上限（50MB）
const DefaultMaxFileSize int64 = 50 << 20

var (
	textExtensions     = []string{".txt", ".md"}
	documentExtensions = []string{".doc", ".docx", ".pdf"}
	audioExtensions    = []string{".mp3", ".wav", ".m4a"}
)

// FileInfo 上传文件的元信息
type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// Transcriber 语音转文字
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// FileAdapter 上传文件适配器
// 文本文件读取真实内容；音频在配置了 Transcriber 时转写，其余情况生成占位内容
type FileAdapter struct {
	MaxSize     int64
	Transcriber Transcriber
}

func NewFileAdapter(maxSize int64, transcriber Transcriber) *FileAdapter {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FileAdapter{MaxSize: maxSize, Transcriber: transcriber}
}

// SupportedExtension 是否为支持的文件类型
func SupportedExtension(name string) bool {
	return kindOf(name) != ""
}

func kindOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, group := range []struct {
		kind string
		exts []string
	}{
		{"text", textExtensions},
		{"document", documentExtensions},
		{"audio", audioExtensions},
	} {
		for _, e := range group.exts {
			if e == ext {
				return group.kind
			}
		}
	}
	return ""
}

// FromFile 将上传文件归一化为抽取输入，content 可以为 nil
func (a *FileAdapter) FromFile(ctx context.Context, f FileInfo, content io.Reader) (Input, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return Input{}, domain.Validationf("文件名为空")
	}
	kind := kindOf(name)
	if kind == "" {
		return Input{}, domain.Validationf("不支持的文件类型 %q", filepath.Ext(name))
	}
	if f.Size < 0 || f.Size > a.MaxSize {
		return Input{}, domain.Validationf("文件大小 %d 超出限制 %d", f.Size, a.MaxSize)
	}

	source := domain.Source{Type: domain.SourceFile, Reference: name, ExtractedFrom: f.ContentType}

	switch {
	case kind == "text" && content != nil:
		data, err := io.ReadAll(io.LimitReader(content, a.MaxSize+1))
		if err != nil {
			return Input{}, domain.Validationf("读取文件失败: %v", err)
		}
		if int64(len(data)) > a.MaxSize {
			return Input{}, domain.Validationf("文件大小超出限制 %d", a.MaxSize)
		}
		if strings.TrimSpace(string(data)) == "" {
			return Input{}, domain.Validationf("empty input")
		}
		return Input{Source: source, Text: string(data)}, nil

	case kind == "audio":
		source.Type = domain.SourceVoice
		if a.Transcriber == nil || content == nil {
			return Input{Source: source, Text: placeholderTranscription(name)}, nil
		}
		text, err := a.Transcriber.Transcribe(ctx, name, io.LimitReader(content, a.MaxSize))
		if err != nil {
			return Input{}, err
		}
		if strings.TrimSpace(text) == "" {
			return Input{}, domain.ExternalCallf("语音转写结果为空: %s", name)
		}
		return Input{Source: source, Text: text}, nil
	}

	return Input{Source: source, Text: placeholderContent(f)}, nil
}

// placeholderContent 不解析文档内容，仅根据文件信息生成占位文本
func placeholderContent(f FileInfo) string {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return fmt.Sprintf(`파일 "%s" (%s, %d bytes)에서 추출된 내용입니다.
- 프로젝트 진행 상황 점검
- 주요 이슈 및 해결 방안 논의
- 다음 스프린트 계획 수립
- 팀원별 역할 분담`, f.Name, contentType, f.Size)
}

func placeholderTranscription(name string) string {
	return fmt.Sprintf(`음성 파일 "%s"에서 추출된 텍스트입니다.
회의 내용 예시:
- 프로젝트 진행 상황 점검
- 주요 이슈 및 해결 방안 논의
- 다음 스프린트 계획 수립
- 팀원별 역할 분담`, name)
}
