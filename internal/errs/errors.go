package errs

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind string

const (
	KindValidation Kind = "validation"       // 输入非法或超出范围
	KindBusiness   Kind = "business_logic"   // 输入合法但当前状态下不允许该操作
	KindNotFound   Kind = "not_found"        // 聚合不存在
	KindConflict   Kind = "conflict"         // 幂等键冲突或并发状态不一致
	KindExternal   Kind = "external_service" // 外部网关调用失败
)

// Error 领域错误，携带分类和可读信息
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 创建输入校验错误
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Business 创建业务规则错误
func Business(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBusiness, Message: fmt.Sprintf(format, args...)}
}

// NotFound 创建聚合不存在错误
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict 创建并发冲突错误
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// External 包装外部服务错误
func External(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf 返回错误分类，非领域错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsBusiness 判断是否为业务规则错误
func IsBusiness(err error) bool {
	return IsKind(err, KindBusiness)
}

// IsValidation 判断是否为输入校验错误
func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

// IsNotFound 判断是否为聚合不存在错误
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsConflict 判断是否为并发冲突错误
func IsConflict(err error) bool {
	return IsKind(err, KindConflict)
}

// IsExternal 判断是否为外部服务错误
func IsExternal(err error) bool {
	return IsKind(err, KindExternal)
}
