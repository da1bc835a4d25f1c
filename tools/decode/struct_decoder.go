package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"PPChat/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Options customizes Decode.
type Options struct {
	// WeaklyTypedInput 允许 42 填充 string、"1" 填充 int（默认 true）
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// DecodeJSON 通过 mapstructure 把 JSON 对象解码为 T（读取 `json` tag）。
// 客户端传 id 时数字、字符串都有，弱类型统一处理
func DecodeJSON[T any](raw []byte, opts ...Options) (*T, error) {
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.ErrArgs.WrapMsg(fmt.Sprintf("payload must be an object, got %T", v))
	}
	return DecodeMap[T](m, cfg)
}

func DecodeMap[T any](m map[string]any, cfg Options) (*T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode payload", "err", err)
	}
	return &out, nil
}

// ReadID 兼容裸值（"u1", 42）或带 key 的对象
func ReadID(raw []byte, key string) (string, error) {
	v, err := parse(raw)
	if err != nil {
		return "", err
	}
	if m, ok := v.(map[string]any); ok {
		v = m[key]
	}
	var id string
	switch t := v.(type) {
	case string:
		id = t
	case json.Number:
		id = t.String()
	case nil:
		return "", errs.ErrArgs.WrapMsg("missing field", "field", key)
	default:
		return "", errs.ErrArgs.WrapMsg(fmt.Sprintf("field %s has type %T", key, v))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errs.ErrArgs.WrapMsg("empty field", "field", key)
	}
	return id, nil
}

func parse(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errs.ErrArgs.WrapMsg("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed json", "err", err)
	}
	return v, nil
}
