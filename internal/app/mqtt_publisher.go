package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const publishTimeout = 2 * time.Second

// ConnectMQTT connects to broker and keeps reconnecting in the background if
// the link drops later. A failure on the first attempt is returned.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// publisher is the part of mqtt.Client the FixPublisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// FixPublisher mirrors store updates to a retained MQTT topic. Offer never
// blocks: only the newest unsent fix is kept, older ones are dropped.
type FixPublisher struct {
	client publisher
	topic  string
	latest chan gps.Fix
	logger zerolog.Logger
}

func NewFixPublisher(client publisher, topic string) *FixPublisher {
	return &FixPublisher{
		client: client,
		topic:  topic,
		latest: make(chan gps.Fix, 1),
		logger: log.With().Str("module", "mqtt").Logger(),
	}
}

// Offer queues f for publishing, replacing any fix still waiting.
// Safe for a single producer.
func (p *FixPublisher) Offer(f gps.Fix) {
	select {
	case <-p.latest:
	default:
	}
	select {
	case p.latest <- f:
	default:
	}
}

func (p *FixPublisher) Run(ctx context.Context) error {
	p.logger.Info().Str("topic", p.topic).Msg("mqtt publisher started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("mqtt publisher stopped")
			return nil
		case f := <-p.latest:
			p.publish(f)
		}
	}
}

func (p *FixPublisher) publish(f gps.Fix) {
	payload, err := json.Marshal(f)
	if err != nil {
		p.logger.Error().Err(err).Msg("gps json marshal error")
		return
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn().Str("topic", p.topic).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn().Err(err).Str("topic", p.topic).Msg("mqtt publish error")
		return
	}
	p.logger.Debug().Str("status", f.Status.String()).Msg("published gps fix")
}
