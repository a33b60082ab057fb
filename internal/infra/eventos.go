package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	ExchangeVentas   = "ventas_topic"
	RoutingLiquidada = "venta.liquidada"
)

// Publicador emits domain events. Publishing is best effort: a failed
// publish never undoes a settled Venta.
type Publicador interface {
	Publicar(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// NopPublicador is used when AMQP_URL is empty.
type NopPublicador struct{}

func (NopPublicador) Publicar(context.Context, string, any) error { return nil }
func (NopPublicador) Close() error                                { return nil }

// RabbitPublicador publishes JSON events to a durable topic exchange.
type RabbitPublicador struct {
	conn *amqp.Connection
	mu   sync.Mutex // amqp channels are not safe for concurrent publishes
	ch   *amqp.Channel
}

// NewRabbitPublicador dials url and declares the ventas exchange.
func NewRabbitPublicador(url string) (*RabbitPublicador, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		ExchangeVentas, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return &RabbitPublicador{conn: conn, ch: ch}, nil
}

func (p *RabbitPublicador) Publicar(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		ExchangeVentas,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return err
	}
	log.Debug().Str("routing_key", routingKey).Msg("evento publicado")
	return nil
}

func (p *RabbitPublicador) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}
