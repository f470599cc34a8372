// Package mqtt publishes session snapshots to an MQTT broker. The publisher
// is optional: broker unavailability degrades to logged drops, never to
// pipeline failure.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/motionlab/stride/internal/domain/types"
	"github.com/motionlab/stride/pkg/logger"
	"github.com/motionlab/stride/pkg/metrics"
)

const (
	connectTimeout    = 5 * time.Second
	publishTimeout    = 2 * time.Second
	reconnectInterval = 10 * time.Second
	clientIDPrefix    = "stride-publisher"
)

// Publisher fans session snapshots out to topic <prefix>/<session_id>.
type Publisher struct {
	client pahomqtt.Client
	prefix string
	log    logger.Logger
}

// NewPublisher connects to the broker. Connection failure is returned so the
// caller can decide to run without publishing.
func NewPublisher(ctx context.Context, broker, topicPrefix string) (*Publisher, error) {
	log := logger.Named("mqtt")

	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%d", clientIDPrefix, time.Now().UnixNano())).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectInterval).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warn(ctx, "broker connection lost", logger.Error(err))
		})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	log.Info(ctx, "connected to broker", logger.String("broker", broker))
	return &Publisher{client: client, prefix: topicPrefix, log: log}, nil
}

// Publish sends one snapshot, QoS 0. Failures are logged and counted; the
// session worker never blocks on the broker.
func (p *Publisher) Publish(ctx context.Context, snap types.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Error(ctx, "snapshot marshal failed", logger.Error(err))
		metrics.RecordMQTTPublishError()
		return
	}

	topic := fmt.Sprintf("%s/%s", p.prefix, snap.SessionID)
	token := p.client.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			metrics.RecordMQTTPublishError()
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn(ctx, "publish failed", logger.String("topic", topic), logger.Error(err))
			metrics.RecordMQTTPublishError()
			return
		}
		metrics.RecordMQTTPublish()
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(uint(publishTimeout.Milliseconds()))
}
