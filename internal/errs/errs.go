// 包 errs：统一的失败分类；调用方通过 errors.Is 按类别判断，超时保留 context.DeadlineExceeded 于错误链中
package errs

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindDataQualityDrop    Kind = "data_quality_drop"
	KindInvalidParameter   Kind = "invalid_parameter"
	KindOutOfRegion        Kind = "out_of_region"
	KindResolutionFailed   Kind = "resolution_failed"
	KindServiceUnavailable Kind = "service_unavailable"
)

// 文档注释：带类别的错误
// 约束：Field 仅对 invalid_parameter 有意义；Err 为底层原因，可为空。
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Field != "" {
		s += " [" + e.Field + "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is 与同类别的哨兵错误匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Field == "" && t.Msg == "" && t.Err == nil
}

var (
	ErrDataQualityDrop    = &Error{Kind: KindDataQualityDrop}
	ErrInvalidParameter   = &Error{Kind: KindInvalidParameter}
	ErrOutOfRegion        = &Error{Kind: KindOutOfRegion}
	ErrResolutionFailed   = &Error{Kind: KindResolutionFailed}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
)

func InvalidParameter(field, format string, args ...any) error {
	return &Error{Kind: KindInvalidParameter, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func OutOfRegion(format string, args ...any) error {
	return &Error{Kind: KindOutOfRegion, Msg: fmt.Sprintf(format, args...)}
}

func ResolutionFailed(format string, args ...any) error {
	return &Error{Kind: KindResolutionFailed, Msg: fmt.Sprintf(format, args...)}
}

func ServiceUnavailable(msg string, cause error) error {
	return &Error{Kind: KindServiceUnavailable, Msg: msg, Err: cause}
}

// KindOf 返回错误链上第一个 *Error 的类别，非分类错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldOf 返回 invalid_parameter 错误对应的字段名
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// IsTimeout 判断错误链中是否包含超时
func IsTimeout(err error) bool { return errors.Is(err, context.DeadlineExceeded) }
