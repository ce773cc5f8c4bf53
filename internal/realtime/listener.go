package realtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// NotifyChannel is the Postgres NOTIFY channel the row triggers publish on.
const NotifyChannel = "time_crafting_changes"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// Listener bridges Postgres LISTEN/NOTIFY into the broker. Row triggers on
// time_transactions and time_balances serialize each change as JSON; the
// listener validates the payload at this boundary and publishes the typed
// event. Malformed payloads are logged and discarded.
type Listener struct {
	pql    *pq.Listener
	broker *Broker
	logger *slog.Logger
	done   chan struct{}
}

// NewListener creates a listener on the given DSN. Start must be called
// before any events flow.
func NewListener(dsn string, broker *Broker, logger *slog.Logger) *Listener {
	pql := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("change listener connection event", "event", event, "error", err)
			}
		})

	return &Listener{
		pql:    pql,
		broker: broker,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start subscribes to the notify channel and begins forwarding events.
func (l *Listener) Start() error {
	if err := l.pql.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", NotifyChannel, err)
	}

	go l.run()
	return nil
}

func (l *Listener) run() {
	for {
		select {
		case notification, ok := <-l.pql.Notify:
			if !ok {
				return
			}
			if notification == nil {
				// lib/pq sends nil after a reconnect; cached views may have
				// missed events while the connection was down.
				l.logger.Warn("change listener reconnected, downstream caches may be stale")
				continue
			}

			ev, err := models.ParseChangeEvent([]byte(notification.Extra))
			if err != nil {
				l.logger.Warn("discarding malformed change event", "error", err)
				continue
			}
			l.broker.Publish(*ev)

		case <-time.After(listenerPingInterval):
			go func() {
				if err := l.pql.Ping(); err != nil {
					l.logger.Error("change listener ping failed", "error", err)
				}
			}()

		case <-l.done:
			return
		}
	}
}

// Close stops forwarding and tears down the Postgres connection.
func (l *Listener) Close() error {
	close(l.done)
	return l.pql.Close()
}
