package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Publisher publishes JSON documents and waits for the broker to acknowledge them.
type Publisher struct {
	client  MQTTClient
	timeout time.Duration
}

// NewPublisher wraps client. timeout bounds the wait for each acknowledgement.
func NewPublisher(client MQTTClient, timeout time.Duration) *Publisher {
	return &Publisher{client: client, timeout: timeout}
}

// PublishJSON encodes v and publishes it to topic.
func (p *Publisher) PublishJSON(topic string, qos byte, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
