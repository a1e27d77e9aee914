package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"pat-settlement/internal/domain"
)

// DefaultSubjectPrefix is the subject root events are published under.
// Each record goes to <prefix>.<Kind>.
const DefaultSubjectPrefix = "pat.events"

const flushTimeout = 5 * time.Second

// NATSPublisher publishes records to a NATS subject per kind.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher creates a publisher on an established connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// DialNATS connects to url with a client name.
func DialNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

var _ Sink = (*NATSPublisher)(nil)

// Name implements Sink.
func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject a kind is published on.
func (p *NATSPublisher) Subject(kind string) string {
	return p.prefix + "." + kind
}

// Publish implements Sink. It returns once the server has acknowledged the flush.
func (p *NATSPublisher) Publish(ctx context.Context, records []*domain.EventRecord) error {
	for _, r := range records {
		data, err := Encode(r)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", r.ID, err)
		}
		msg := nats.NewMsg(p.Subject(r.Kind))
		msg.Data = data
		msg.Header.Set(nats.MsgIdHdr, r.ID)
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish event %s: %w", r.ID, err)
		}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
