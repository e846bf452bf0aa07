package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

const (
	headerEventType = "event-type"
	headerSource    = "source"
	headerInstance  = "instance"

	eventTypeSongRequest = "song-request"

	flushTimeout = 5 * time.Second
)

type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	instance string

	failed atomic.Int64
	done   chan struct{}
}

func NewConfluentProducer(cfg config.KafkaConfig, instance string) (*ConfluentProducer, error) {
	if err := ensureTopic(cfg); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("song request topic not ensured")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         instance,
		"acks":              "1",
		"linger.ms":         20,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("create song request producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    cfg.Topic,
		instance: instance,
		done:     make(chan struct{}),
	}
	go cp.watchDeliveries()
	return cp, nil
}

func ensureTopic(cfg config.KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.Brokers})
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Error)
		}
	}
	return nil
}

func (cp *ConfluentProducer) watchDeliveries() {
	defer close(cp.done)
	for e := range cp.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok || msg.TopicPartition.Error == nil {
			continue
		}
		cp.failed.Add(1)
		l := log.L()
		l.Error().Err(msg.TopicPartition.Error).
			Str(log.FieldAccount, string(msg.Key)).
			Msg("song request delivery failed")
	}
}

// songRequestMessage keys by account so one stream's requests land on one partition in order.
func songRequestMessage(topic, instance string, event *domain.SongRequestEvent) (*kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode song request: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Account),
		Value:          value,
		Timestamp:      time.UnixMilli(event.AddedAt),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(eventTypeSongRequest)},
			{Key: headerSource, Value: []byte(event.Source)},
			{Key: headerInstance, Value: []byte(instance)},
		},
	}, nil
}

func (cp *ConfluentProducer) ProduceSongRequest(ctx context.Context, event *domain.SongRequestEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := songRequestMessage(cp.topic, cp.instance, event)
	if err != nil {
		return err
	}
	if err := cp.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("produce song request: %w", err)
	}
	return nil
}

// Close flushes queued requests and reports any that could not be sent in time.
func (cp *ConfluentProducer) Close() error {
	remaining := cp.producer.Flush(int(flushTimeout.Milliseconds()))
	cp.producer.Close()
	<-cp.done

	if remaining > 0 {
		return fmt.Errorf("%d song requests unflushed at close", remaining)
	}
	if n := cp.failed.Load(); n > 0 {
		l := log.L()
		l.Warn().Int64("failed", n).Msg("song request deliveries failed during run")
	}
	return nil
}
