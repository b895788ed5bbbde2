package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// Forwarder bridges a local Bus onto a Kafka cluster. It subscribes to
// every topic and produces each event as a JSON document, so cache
// events published in-process become durable platform events.
type Forwarder struct {
	log logger.Logger
	cfg *ForwarderConfig

	producer *kafka.Producer
	sub      *Subscription

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewForwarder attaches a Kafka forwarder to b. The forwarder owns its
// producer; call Close to detach and flush in-flight deliveries.
func NewForwarder(log logger.Logger, cfg *ForwarderConfig, b Bus) (*Forwarder, error) {
	if cfg == nil {
		cfg = DefaultForwarderConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"client.id":         cfg.ClientID,
		"acks":              "1",
	}

	var producer *kafka.Producer
	var err error

	// Broker metadata may not be ready right after deploy; retry a few
	// times before giving up.
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		producer, err = kafka.NewProducer(configMap)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			log.Warn("failed to create kafka producer, retrying...",
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("max_retries", maxRetries),
			)
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, ErrConnection(err)
	}

	f := &Forwarder{
		log:      log,
		cfg:      cfg,
		producer: producer,
		done:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.handleDeliveryReports()

	f.sub = b.Subscribe(TopicAll, f.forward)

	log.Info("kafka event forwarder attached",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return f, nil
}

// forward hands one bus event to the producer, logging failures.
// Closed-forwarder races during shutdown are not worth a log line.
func (f *Forwarder) forward(topic string, fields Fields) {
	if err := f.produce(topic, fields); err != nil && !errors.Is(err, ErrForwarderClosed) {
		f.log.Error("failed to forward event",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

// produce serializes one bus event and enqueues it on the producer.
// Delivery failures surface in the report loop, not here.
func (f *Forwarder) produce(topic string, fields Fields) error {
	select {
	case <-f.done:
		return ErrForwarderClosed
	default:
	}

	value, err := json.Marshal(fields)
	if err != nil {
		return ErrEncode(topic, err)
	}

	kafkaTopic := f.cfg.TopicPrefix + strings.ReplaceAll(topic, ":", ".")
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kafkaTopic,
			Partition: kafka.PartitionAny,
		},
		Value: value,
	}
	if key, ok := fields["key"]; ok {
		msg.Key = []byte(fmt.Sprint(key))
	}

	if err := f.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("bus: produce event to topic %s failed: %w", kafkaTopic, err)
	}
	return nil
}

// handleDeliveryReports drains producer events until shutdown.
func (f *Forwarder) handleDeliveryReports() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		case e := <-f.producer.Events():
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					f.log.Error("failed to deliver event",
						zap.Error(ev.TopicPartition.Error),
						zap.String("topic", *ev.TopicPartition.Topic),
					)
				}
			case kafka.Error:
				f.log.Error("kafka producer error",
					zap.Int("code", int(ev.Code())),
					zap.String("error", ev.String()),
				)
			}
		}
	}
}

// Close detaches from the bus, flushes pending deliveries, and closes
// the producer. Safe to call more than once.
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() {
		f.sub.Cancel()
		close(f.done)
		f.wg.Wait()

		remaining := f.producer.Flush(int(f.cfg.FlushTimeout.Milliseconds()))
		if remaining > 0 {
			f.log.Warn("events still undelivered at shutdown", zap.Int("remaining", remaining))
		}
		f.producer.Close()
	})
}
