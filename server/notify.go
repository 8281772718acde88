package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier is the request-handler side of the notification hand-off. Handlers
// call Emit after their database write has committed; a failed hand-off is the
// caller's to log, never to surface, since the primary mutation has already
// been reported as successful.
type Notifier struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewNotifier(url string, log *slog.Logger) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

// Emit hands the event descriptor to the connection server over HTTP. The
// returned error reflects the hand-off only, not delivery to any client.
func (n *Notifier) Emit(ctx context.Context, event string, p EventPayload) error {
	body, err := json.Marshal(map[string]any{"event": event, "data": p})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emit: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// emit is the fire-and-forget wrapper used by handlers: log and move on.
func (n *Notifier) emit(event string, p EventPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Emit(ctx, event, p); err != nil {
		n.log.Warn("notification hand-off failed", "event", event, "err", err)
	}
}
