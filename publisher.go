package main

import (
	"PPChat/global/config"
	"PPChat/logger"
	"PPChat/service/events"
	"PPChat/service/kafka"
	"PPChat/service/natsx"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// openPublisher 按 cfg.Driver 创建事件发布器
func openPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsNone, "":
		return events.Nop{}, nil
	case config.EventsNats:
		p, err := natsx.NewPublisher(natsx.NatsxConfig{
			Servers:       []string{cfg.Nats.URL},
			Name:          cfg.Nats.Name,
			SubjectPrefix: cfg.Nats.SubjectPrefix,
			JetStream:     cfg.Nats.JetStream,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("events: nats", zap.String("url", cfg.Nats.URL), zap.Bool("jetstream", cfg.Nats.JetStream))
		return p, nil
	case config.EventsKafka:
		p, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, err
		}
		logger.Info("events: kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		return p, nil
	}
	return nil, errs.ErrArgs.WrapMsg("unknown events driver", "driver", cfg.Driver)
}
