package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/cms/internal/idgen"
)

// ClientName identifies cms connections in NATS monitoring.
const ClientName = "cms"

// Headers set on every published event.
const (
	HeaderEventID     = "Cms-Event-Id"
	HeaderPublishedAt = "Cms-Published-At"
)

// Connect dials NATS with the options every cms connection uses. Extra
// options are appended after the defaults.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON events with an ID and a publish time in the
// message headers. Consumers use the ID to drop redeliveries.
type NATSPublisher struct {
	conn  *nats.Conn
	owned bool
	now   func() time.Time
}

// NewNATSPublisher dials url. Close closes the connection.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, owned: true, now: time.Now}, nil
}

// NewNATSPublisherConn publishes over an existing connection. Close flushes
// and leaves the connection open.
func NewNATSPublisherConn(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: nc, now: time.Now}
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	id, err := idgen.EventID()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(topic)
	msg.Data = data
	msg.Header.Set(HeaderEventID, id)
	msg.Header.Set(HeaderPublishedAt, p.now().UTC().Format(time.RFC3339Nano))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	if p.owned {
		p.conn.Close()
		return nil
	}
	return p.conn.Flush()
}
