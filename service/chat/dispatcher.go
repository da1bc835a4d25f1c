package chat

import (
	"sort"
	"sync"

	"PPChat/tools/errs"
	"PPChat/tools/safe"
)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register 注册 h，同名事件覆盖
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	d.handlers[h.Event()] = h
	d.mu.Unlock()
}

func (d *Dispatcher) GetHandler(event string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[event]
}

// Dispatch 执行 f.Event 对应的 handler；handler panic 转成错误，连接不受影响
func (d *Dispatcher) Dispatch(cc *ChatContext, c *Client, f *Frame) error {
	h := d.GetHandler(f.Event)
	if h == nil {
		return errs.ErrUnsupportedEvent.WrapMsg("no handler", "event", f.Event)
	}
	return safe.Call(func() error { return h.Handle(cc, c, f.Data) })
}

// Events lists the registered event names, sorted.
func (d *Dispatcher) Events() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for e := range d.handlers {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
