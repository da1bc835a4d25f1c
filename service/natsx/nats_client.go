package natsx

import (
	"strings"
	"time"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NatsxConfig struct {
	Servers       []string
	Name          string
	SubjectPrefix string // subject = <prefix>.<事件类型>
	JetStream     bool   // 走 JetStream 发布，用 Nats-Msg-Id 去重
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func connect(cfg NatsxConfig) (*nats.Conn, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	log := logger.Named("nats")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("connect nats", "err", err)
	}
	return nc, nil
}
