package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"BarBridge/internal/domain/models"
	pkgkafka "BarBridge/pkg/kafka"
	applogger "BarBridge/pkg/logger"
)

// KafkaTransport serves range queries over a request/reply topic pair:
// RangeQuery JSON in on the request topic, RangeResponse out on the reply
// topic keyed by request id.
type KafkaTransport struct {
	core         *Core
	consumer     *pkgkafka.Consumer
	producer     *pkgkafka.Producer
	requestTopic string
	replyTopic   string
	log          *applogger.Logger
}

// NewKafkaTransport wires the consumer/producer pair.
func NewKafkaTransport(core *Core, consumer *pkgkafka.Consumer, producer *pkgkafka.Producer, requestTopic, replyTopic string, log *applogger.Logger) *KafkaTransport {
	return &KafkaTransport{
		core:         core,
		consumer:     consumer,
		producer:     producer,
		requestTopic: requestTopic,
		replyTopic:   replyTopic,
		log:          log,
	}
}

// Topic implements pkgkafka.MessageHandler.
func (t *KafkaTransport) Topic() string { return t.requestTopic }

// Handle decodes one request and publishes the reply. Decode failures are
// counted and dropped; there is no request id to answer to.
func (t *KafkaTransport) Handle(ctx context.Context, data []byte) error {
	var q models.RangeQuery
	if err := json.Unmarshal(data, &q); err != nil {
		t.core.metrics.RecordReceiveFailure()
		t.log.Warn("undecodable range request", applogger.Error(err))
		return fmt.Errorf("decode range request: %w", err)
	}
	if q.RequestID == "" {
		t.core.metrics.RecordReceiveFailure()
		return fmt.Errorf("range request missing request id")
	}

	resp := t.core.Answer(q)
	if err := t.producer.Publish(ctx, t.replyTopic, []byte(q.RequestID), resp); err != nil {
		t.core.metrics.RecordSendFailure()
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// Start registers the handler and launches the consumer loop.
func (t *KafkaTransport) Start(context.Context) error {
	t.consumer.RegisterHandler(t)
	return t.consumer.Start()
}

// Stop drains the consumer. Idempotent.
func (t *KafkaTransport) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.consumer.Stop(ctx); err != nil {
		t.log.Warn("query consumer stop", applogger.Error(err))
	}
}

// IsConnected reports whether the consumer loop is alive.
func (t *KafkaTransport) IsConnected() bool { return t.consumer.IsRunning() }
