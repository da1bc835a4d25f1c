package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// CodeError 通过 "error" 事件返回给客户端的错误结构
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{Code: code, Msg: msg}
}

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap 返回带调用栈的副本
func (e CodeError) Wrap() error {
	c := e
	return pkgerrors.WithStack(&c)
}

// WrapMsg 把 msg 与 key/value 追加到 detail，并记录调用栈
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	c := e
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if c.Detail == "" {
			c.Detail = detail
		} else {
			c.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(&c)
}

// Is 只比较错误码，不论包装了多少层
func (e *CodeError) Is(target error) bool {
	var other *CodeError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Is reports whether err carries a CodeError with target's code.
func Is(err error, target CodeError) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == target.Code
}

// Code 返回 err 的错误码；非 CodeError 返回 ServerInternalError
func Code(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerInternalError
}

// Message 给客户端看的错误文本：错误信息加 detail，不含调用栈
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CodeError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.Detail == "" {
		return ce.Msg
	}
	return ce.Msg + ": " + ce.Detail
}

// Wrap attaches a stack to a foreign error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
