// Package events publishes game settlement events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"skin-casino/internal/config"
	"skin-casino/internal/model"
)

// EventGameSettled is the type of the event sent for every settled game.
const EventGameSettled = "game.settled"

// SettledEvent is the payload published after a game is settled. The server
// seed is included since it is revealed with the record anyway.
type SettledEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Record     *model.GameRecord `json:"record"`
	NewBalance decimal.Decimal   `json:"newBalance"`
}

// NewSettledEvent builds the event for rec.
func NewSettledEvent(rec *model.GameRecord, newBalance decimal.Decimal) *SettledEvent {
	return &SettledEvent{
		ID:         uuid.NewString(),
		Type:       EventGameSettled,
		OccurredAt: time.Now().UTC(),
		Record:     rec,
		NewBalance: newBalance,
	}
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes settled events on a core NATS subject.
type NATSPublisher struct {
	nc      conn
	subject string
}

// Publisher is what Connect returns: a settled-event sink that can be closed.
type Publisher interface {
	PublishSettled(ctx context.Context, rec *model.GameRecord, newBalance decimal.Decimal) error
	Close()
}

// Connect dials NATS. An empty URL returns a publisher that drops events.
func Connect(cfg *config.NATSConfig) (Publisher, error) {
	if cfg == nil || cfg.URL == "" {
		log.Info().Msg("NATS not configured, settled events are not published")
		return NoopPublisher{}, nil
	}

	opts := []nats.Option{
		nats.Name("skin-casino"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected with error")
			} else {
				log.Warn().Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", cfg.URL).Str("subject", cfg.Subject).Msg("Connected to NATS")
	return NewNATSPublisher(nc, cfg.Subject), nil
}

// NewNATSPublisher creates a publisher on an existing connection.
func NewNATSPublisher(nc conn, subject string) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject}
}

// PublishSettled sends one settled event.
func (p *NATSPublisher) PublishSettled(ctx context.Context, rec *model.GameRecord, newBalance decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewSettledEvent(rec, newBalance))
	if err != nil {
		return fmt.Errorf("failed to marshal settled event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() {
	p.nc.Close()
	log.Info().Msg("NATS connection closed")
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishSettled(context.Context, *model.GameRecord, decimal.Decimal) error {
	return nil
}

func (NoopPublisher) Close() {}
