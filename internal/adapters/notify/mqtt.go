package notify

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/rehearsal/internal/domain/model"
	"github.com/okian/rehearsal/pkg/metrics"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // ms
)

// MQTTPublisher publishes ranking updates to an MQTT broker.
type MQTTPublisher struct {
	client paho.Client
	prefix string
}

// NewMQTTPublisher connects to broker and returns a publisher.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: %w", broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return NewMQTTPublisherWithClient(client, prefix), nil
}

// NewMQTTPublisherWithClient wraps an already configured client.
func NewMQTTPublisherWithClient(client paho.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Publish sends the update with QoS 1, retained, so late subscribers get the
// latest ranking straight away.
func (p *MQTTPublisher) Publish(ctx context.Context, update model.RankingUpdated) error {
	payload, err := FormatPayload(update)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	token := p.client.Publish(Topic(p.prefix, update.GroupID), 1, true, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		metrics.RecordNotificationError()
		return ErrPublishTimeout
	case <-ctx.Done():
		metrics.RecordNotificationError()
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		metrics.RecordNotificationError()
		return fmt.Errorf("publish: %w", err)
	}

	metrics.RecordNotificationPublished()
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
