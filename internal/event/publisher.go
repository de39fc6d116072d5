// Package event publishes session events to a RabbitMQ topic exchange.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiliankoe/knowme/internal/game"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const routingPrefix = "game."

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
}

// NewPublisher connects to url and declares exchange. An empty url yields a
// disabled publisher that accepts and discards events.
func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		log.Info().Msg("amqp url empty, event publishing disabled")
		return &Publisher{exchange: exchange}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", exchange).Msg("event publisher initialized")
	return &Publisher{conn: conn, channel: channel, exchange: exchange, enabled: true}, nil
}

func (p *Publisher) Enabled() bool { return p.enabled }

func RoutingKey(evt game.Event) string { return routingPrefix + evt.Name }

func (p *Publisher) Deliver(ctx context.Context, evt game.Event) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(evt),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.At,
			Type:         evt.Name,
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
