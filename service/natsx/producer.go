package natsx

import (
	"context"

	"PPChat/service/events"
	"PPChat/tools/errs"

	"github.com/nats-io/nats.go"
)

// Publisher 把 hub 事件发到 NATS
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

func NewPublisher(cfg NatsxConfig) (*Publisher, error) {
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	p := &Publisher{nc: nc, prefix: cfg.SubjectPrefix}
	if cfg.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, errs.ErrStorage.WrapMsg("jetstream context", "err", err)
		}
		p.js = js
	}
	return p, nil
}

// Subject 事件类型对应的 subject
func (p *Publisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	data, err := e.Marshal()
	if err != nil {
		return errs.Wrap(err)
	}
	msg := nats.NewMsg(p.Subject(e.Type))
	msg.Data = data
	msg.Header.Set("Ppchat-Key", e.Key())

	if p.js != nil {
		// 事件 id 同时作为 JetStream 去重 id
		msg.Header.Set(nats.MsgIdHdr, e.ID)
		if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return errs.ErrStorage.WrapMsg("jetstream publish", "subject", msg.Subject, "err", err)
		}
		return nil
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return errs.ErrStorage.WrapMsg("nats publish", "subject", msg.Subject, "err", err)
	}
	return nil
}

// Close 刷出未发送消息并关闭连接
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return errs.Wrap(err)
	}
	return nil
}
