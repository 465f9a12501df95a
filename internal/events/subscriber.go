package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriptionBuffer is how many undelivered messages a subscription holds
// before new ones are dropped.
const subscriptionBuffer = 64

// Message is one event received from the bus.
type Message struct {
	ID          string
	Topic       string
	PublishedAt time.Time
	Data        []byte
}

// Decode unmarshals the payload into v, for example a *SectionSaved.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decoding %s event: %w", m.Topic, err)
	}
	return nil
}

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers the events of topic until ctx is done, then closes
	// the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}

// NATSSubscriber subscribes to NATS subjects. Topics may use NATS wildcards
// such as TopicAll.
type NATSSubscriber struct {
	conn   *nats.Conn
	owned  bool
	logger *slog.Logger
}

// NewNATSSubscriber dials url. Extra options, such as reconnect handlers,
// are appended to the defaults of Connect.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc, owned: true, logger: slog.Default()}, nil
}

// NewNATSSubscriberConn subscribes over an existing connection. Close leaves
// the connection open.
func NewNATSSubscriberConn(nc *nats.Conn, logger *slog.Logger) *NATSSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSubscriber{conn: nc, logger: logger}
}

// Subscribe registers the subscription on the server before returning, so
// events published afterwards on any connection are delivered. A slow reader
// loses messages rather than blocking the connection.
func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, subscriptionBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		m := Message{Topic: msg.Subject, Data: msg.Data}
		if msg.Header != nil {
			m.ID = msg.Header.Get(HeaderEventID)
			m.PublishedAt, _ = time.Parse(time.RFC3339Nano, msg.Header.Get(HeaderPublishedAt))
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- m:
		default:
			s.logger.Warn("event dropped, subscriber is behind", "topic", msg.Subject, "event_id", m.ID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch, nil
}

func (s *NATSSubscriber) Close() error {
	if s.owned {
		s.conn.Close()
	}
	return nil
}
