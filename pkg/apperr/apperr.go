package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind 错误类别
// 处理器据此映射HTTP状态码
type Kind int

const (
	KindUnknown     Kind = iota
	KindValidation       // 参数缺失或非法 -> 400
	KindNotFound         // 资源不存在或已删除 -> 404
	KindForbidden        // 跨校/越权访问 -> 403
	KindUnavailable      // 存储不可达或超时 -> 503
	KindInternal         // 未预期错误 -> 500
)

// Error 带类别的业务错误
// Fields 仅校验错误使用，列出所有缺失/非法字段（不是只报第一个）

type Error struct {
	Kind   Kind
	Msg    string
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation 构造校验错误，fields列出全部问题字段
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

// NotFound 构造资源不存在错误
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Forbidden 构造越权访问错误
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// Unavailable 构造存储不可用/超时错误
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: err}
}

// Internal 构造未预期错误
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf 提取错误类别，非业务错误返回KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldsOf 提取校验错误的问题字段列表
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsTimeout 判断错误是否由超时/取消引起
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
