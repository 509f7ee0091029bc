package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/packwatch/internal/events"
	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
)

// changedMessage is the wire form of a packages-changed notification.
type changedMessage struct {
	Project   string    `json:"project"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSForwarder relays packages-changed events from the in-process bus
// to a NATS subject so that out-of-process clients (editors, dashboards)
// can react without polling the HTTP API.
type NATSForwarder struct {
	conn    *nats.Conn
	subject string
	project string
	logger  *slog.Logger
}

// NewNATSForwarder connects to the given NATS server. The connection is
// owned by the forwarder and released by Close.
func NewNATSForwarder(url, subject, project string, logger *slog.Logger) (*NATSForwarder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}

	logger.Info("NATS notification forwarding enabled", "subject", subject)

	return &NATSForwarder{
		conn:    conn,
		subject: subject,
		project: project,
		logger:  logger,
	}, nil
}

// Run forwards bus events until the context is canceled or the bus closes.
func (f *NATSForwarder) Run(ctx context.Context, bus *events.Bus) {
	ch, unsubscribe := events.Subscribe[events.PackagesChanged](bus, 16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			f.publish(evt)
		}
	}
}

func (f *NATSForwarder) publish(evt events.PackagesChanged) {
	data, err := json.Marshal(changedMessage{
		Project:   f.project,
		Timestamp: evt.At,
	})
	if err != nil {
		f.logger.Warn("failed to marshal notification", "error", err)
		return
	}
	if err := f.conn.Publish(f.subject, data); err != nil {
		f.logger.Warn("failed to publish notification to NATS",
			"subject", f.subject, "error", err)
	}
}

// Close drains and releases the NATS connection.
func (f *NATSForwarder) Close() {
	if f.conn != nil {
		f.conn.Close()
	}
}
