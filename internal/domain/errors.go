package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 输入为空或不合法（适配器层）
	ErrValidation = errors.New("validation error")

	// ErrExtraction 中间表示（会议记录）格式错误
	ErrExtraction = errors.New("extraction error")

	// ErrSynthesis 用于生成 issue 的会议记录为空或格式错误
	ErrSynthesis = errors.New("synthesis error")

	// ErrExternalCall 外部后端（LLM / 语音转写）调用失败或返回无法解析的内容
	ErrExternalCall = errors.New("external call error")

	// ErrBusy 同一 pipeline 已有任务在执行
	ErrBusy = errors.New("pipeline is busy")

	// ErrNotFound 指定的 issue 或会议记录不存在
	ErrNotFound = errors.New("not found")
)

// Validationf 构造 ErrValidation 错误
func Validationf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

// Extractionf 构造 ErrExtraction 错误
func Extractionf(format string, args ...any) error {
	return wrapf(ErrExtraction, format, args...)
}

// Synthesisf 构造 ErrSynthesis 错误
func Synthesisf(format string, args ...any) error {
	return wrapf(ErrSynthesis, format, args...)
}

// ExternalCallf 构造 ErrExternalCall 错误，args 中的 error 会被保留在错误链中
func ExternalCallf(format string, args ...any) error {
	return wrapf(ErrExternalCall, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}

// Kind 返回错误所属的分类，未知分类返回 nil
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrExtraction, ErrSynthesis, ErrExternalCall, ErrBusy, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
