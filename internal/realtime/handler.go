package realtime

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// SubscribeFunc opens the subscriptions a websocket connection streams.
// ctx is cancelled when the connection ends.
type SubscribeFunc func(ctx context.Context, r *http.Request) ([]*Subscription, error)

// HandleWebSocket opens the caller's subscriptions, upgrades the connection
// and streams their events as JSON.
func HandleWebSocket(subscribe SubscribeFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		subs, err := subscribe(ctx, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept failed", "error", err)
			return
		}

		for _, sub := range subs {
			logger.Debug("websocket subscribed", "subscription", sub.ID, "name", sub.Name, "topics", sub.Topics())
		}
		NewClient(conn, subs...).Run(ctx)
	}
}
