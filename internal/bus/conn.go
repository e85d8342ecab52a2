package bus

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Subscription is an active subject subscription that can be torn down.
type Subscription interface {
	Unsubscribe() error
}

// Conn is the slice of the NATS connection the bridge uses. The seam keeps
// the bridge testable against an in-memory connection.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error)
}

type natsConn struct {
	nc *nats.Conn
}

// Wrap adapts a *nats.Conn to the bridge's Conn interface.
func Wrap(nc *nats.Conn) Conn {
	return &natsConn{nc: nc}
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error) {
	return c.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Subject, m.Data)
	})
}

// Connect dials NATS with the reconnect posture used for long-lived service
// connections.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("drawsync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
}
