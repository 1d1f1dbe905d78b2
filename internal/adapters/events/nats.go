package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// NATSPublisher publishes proposal state changes on
// <prefix>.<daoID>.state. The connection is opened on first publish.
type NATSPublisher struct {
	url    string
	prefix string
	log    *slog.Logger

	mu     sync.Mutex
	nc     *nats.Conn
	closed bool
}

// NewNATSPublisher creates a publisher for the given server url
func NewNATSPublisher(cfg config.EventsConfig, log *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		url:    cfg.NatsURL,
		prefix: cfg.SubjectPrefix,
		log:    log.With("component", "NATSPublisher"),
	}
}

// ProvidePublisher returns the NATS publisher when a server is configured and
// a no-op publisher otherwise
func ProvidePublisher(cfg *config.RuntimeConfig, log *slog.Logger) (usecase.EventPublisher, func()) {
	if cfg.Events.NatsURL == "" {
		return usecase.NopPublisher{}, func() {}
	}
	p := NewNATSPublisher(cfg.Events, log)
	return p, p.Close
}

// Subject returns the subject a DAO's state changes are published on
func (p *NATSPublisher) Subject(daoID string) string {
	return fmt.Sprintf("%s.%s.state", p.prefix, daoID)
}

// PublishStateChange marshals the event as JSON and publishes it.
// NATS Publish does not take a context, the context is checked before publishing.
func (p *NATSPublisher) PublishStateChange(ctx context.Context, event models.ProposalStateChanged) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}

	nc, err := p.conn()
	if err != nil {
		return err
	}
	subject := p.Subject(event.DAOID)
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug("published state change", "subject", subject, "proposal", event.ProposalID, "state", event.StateName)
	return nil
}

func (p *NATSPublisher) conn() (*nats.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("publisher closed")
	}
	if p.nc != nil {
		return p.nc, nil
	}
	nc, err := nats.Connect(p.url,
		nats.Name("govsync"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", p.url, err)
	}
	p.nc = nc
	return nc, nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.log.Warn("failed to drain nats connection", "error", err)
		p.nc.Close()
	}
	p.nc = nil
}

var _ usecase.EventPublisher = (*NATSPublisher)(nil)
