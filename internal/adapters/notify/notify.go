// Package notify publishes flow run completion events to rabbitmq
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FlowRunEvent is the payload published when a flow run reaches a terminal state
type FlowRunEvent struct {
	ID         string    `json:"id"`
	Flow       string    `json:"flow"`
	Deployment string    `json:"deployment,omitempty"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// RoutingKey is flow_run.{state} in lower case
func (e FlowRunEvent) RoutingKey() string { return "flow_run." + strings.ToLower(e.State) }

// Publisher sends events
type Publisher interface {
	FlowRunFinished(ctx context.Context, ev FlowRunEvent) error
	Close() error
}

// Noop drops every event
type Noop struct{}

func (Noop) FlowRunFinished(context.Context, FlowRunEvent) error { return nil }
func (Noop) Close() error                                        { return nil }

// Config locates the broker
type Config struct {
	URL          string
	Exchange     string
	DialAttempts int
}

// FromConfig reads SERVICE_AMQP_URL, SERVICE_AMQP_EXCHANGE and
// SERVICE_AMQP_DIAL_ATTEMPTS
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("SERVICE_AMQP_")
	return Config{
		URL:          c.MayString("URL", ""),
		Exchange:     c.MayString("EXCHANGE", "crimetrends.events"),
		DialAttempts: c.MayInt("DIAL_ATTEMPTS", 5),
	}
}

// channel is the part of *amqp.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes persistent json messages to a durable topic exchange
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// Open returns Noop when cfg.URL is empty, otherwise dials the broker and
// declares the exchange
func Open(ctx context.Context, cfg Config) (Publisher, error) {
	if cfg.URL == "" {
		logger.Named("notify").Debug().Msg("SERVICE_AMQP_URL empty, events disabled")
		return Noop{}, nil
	}
	conn, err := dial(ctx, cfg.URL, cfg.DialAttempts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "amqp channel")
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "declare exchange %s", cfg.Exchange)
	}
	return &AMQP{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// dial retries with a linear backoff while ctx allows
func dial(ctx context.Context, url string, attempts int) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var conn *amqp.Connection
		if conn, err = amqp.Dial(url); err == nil {
			return conn, nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(time.Second * time.Duration(1+i))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "amqp dial")
}

// FlowRunFinished publishes ev under its routing key
func (p *AMQP) FlowRunFinished(ctx context.Context, ev FlowRunEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode flow run event")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, ev.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.EndedAt,
		Type:         "flow_run.finished",
		Body:         body,
	})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "publish flow run event")
	}
	return nil
}

// Close closes the channel and the connection
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	if p.ch != nil {
		first = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
