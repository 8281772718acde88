package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Domain event types accepted by the router. Anything else reaching Dispatch
// is a caller/router version mismatch, not a delivery failure.
const (
	EvOrderCreated    = "order-created"
	EvOrderConfirmed  = "order-confirmed"
	EvOrderCancelled  = "order-cancelled"
	EvReviewSubmitted = "review-submitted"
	// Legacy alias kept for older emitters
	evReviewSaved = "review-saved-notification"
)

var ErrUnknownEvent = errors.New("unknown event type")

// EventPayload carries the identifiers a request handler knows after its
// database write. Identifiers travel as strings on the wire.
type EventPayload struct {
	OrderID      string `json:"orderId,omitempty"`
	ReviewID     string `json:"reviewId,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
	CompanyName  string `json:"companyName,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
	Rating       int    `json:"rating,omitempty"`
}

// Router holds the static table from event type to target rooms and
// notification shapes.
type Router struct {
	reg *Registry
	log *slog.Logger
	now func() time.Time
}

func NewRouter(reg *Registry, log *slog.Logger) *Router {
	return &Router{reg: reg, log: log, now: time.Now}
}

type route struct {
	room    Room
	target  string
	message string
}

func (rt *Router) resolve(event string, p EventPayload) ([]route, error) {
	switch event {
	case EvOrderCreated:
		return []route{
			{CompanyRoom(p.CompanyID), "company", fmt.Sprintf("New order %s from %s", p.OrderID, orFallback(p.CustomerName, "a customer"))},
			{AdminRoom(), "admin", fmt.Sprintf("Order %s created for company %s", p.OrderID, p.CompanyID)},
		}, nil
	case EvOrderConfirmed:
		return []route{
			{UserRoom(p.AccountID), "user", fmt.Sprintf("Your order %s was confirmed by %s", p.OrderID, orFallback(p.CompanyName, "the company"))},
			{AdminRoom(), "admin", fmt.Sprintf("Order %s confirmed", p.OrderID)},
		}, nil
	case EvOrderCancelled:
		return []route{
			{UserRoom(p.AccountID), "user", fmt.Sprintf("Your order %s was cancelled", p.OrderID)},
			{AdminRoom(), "admin", fmt.Sprintf("Order %s cancelled", p.OrderID)},
		}, nil
	case EvReviewSubmitted, evReviewSaved:
		return []route{
			{CompanyRoom(p.CompanyID), "company", fmt.Sprintf("New %d-star review from %s", p.Rating, orFallback(p.CustomerName, "a customer"))},
			{AdminRoom(), "admin", fmt.Sprintf("Review %s submitted for company %s", p.ReviewID, p.CompanyID)},
		}, nil
	}
	return nil, ErrUnknownEvent
}

// Dispatch resolves the routing table entry for the event and publishes one
// notification per target room. Empty rooms drop silently; only an unknown
// event type is an error.
func (rt *Router) Dispatch(event string, p EventPayload) error {
	routes, err := rt.resolve(event, p)
	if err != nil {
		return err
	}
	if event == evReviewSaved {
		event = EvReviewSubmitted
	}
	ts := rt.now().UTC().Format(time.RFC3339)
	for _, r := range routes {
		n := Notification{
			Type:      event,
			Message:   r.message,
			OrderID:   p.OrderID,
			ReviewID:  p.ReviewID,
			Rating:    p.Rating,
			Target:    r.target,
			Timestamp: ts,
		}
		delivered := rt.reg.Publish(r.room, n)
		rt.log.Debug("event routed", "event", event, "room", r.room.Name(), "delivered", delivered)
	}
	return nil
}

func orFallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
