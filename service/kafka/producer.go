package kafka

import (
	"context"
	"time"

	"PPChat/service/events"
	"PPChat/tools/errs"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers     []string
	Topic       string
	Compression string // none|snappy|lz4|zstd
	Retries     int
}

// BuildBaseConfig 生产者配置：所有副本确认，按 key 哈希分区（同一会话的事件落在同一分区）
func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 3
	}
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch c.Compression {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Version = sarama.V2_1_0_0
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// Producer 把 hub 事件写入一个 topic，key 为会话（或用户）
type Producer struct {
	sp    sarama.SyncProducer
	topic string
}

func NewProducer(c Config) (*Producer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errs.ErrArgs.WrapMsg("kafka needs brokers and topic")
	}
	sp, err := sarama.NewSyncProducer(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("kafka producer", "err", err)
	}
	return NewProducerFrom(sp, c.Topic), nil
}

// NewProducerFrom 包装已有的 SyncProducer（单测用 mocks）
func NewProducerFrom(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{sp: sp, topic: topic}
}

func (p *Producer) Publish(_ context.Context, e events.Event) error {
	data, err := e.Marshal()
	if err != nil {
		return errs.Wrap(err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(e.Type)},
			{Key: []byte("id"), Value: []byte(e.ID)},
		},
		Timestamp: e.At,
	}
	if _, _, err := p.sp.SendMessage(msg); err != nil {
		return errs.ErrStorage.WrapMsg("kafka send", "topic", p.topic, "type", e.Type, "err", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.sp.Close()
}
