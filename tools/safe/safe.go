package safe

import (
	"fmt"
	"reflect"

	"PPChat/logger"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil 值为 nil 时 panic
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// DefaultString s 为 nil 时返回 fallback
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// Go 新协程执行 f，panic 只记日志不崩溃
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover 配合 defer 使用，记录 panic 及调用栈
func Recover(name string) {
	if r := recover(); r != nil {
		logger.L().Error("panic recovered",
			zap.String("goroutine", name),
			zap.Error(errs.ErrPanic(r)),
			zap.Stack("stack"))
	}
}

// Call 执行 f，panic 转为 error
func Call(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
		}
	}()
	return f()
}
