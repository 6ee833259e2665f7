package ws

import (
	"pastpapers/internal/checkout"
)

const (
	EventPaymentStatus  = "payment.status"
	EventPaymentSettled = "payment.settled"
)

type Event struct {
	Type    string `json:"type"`
	Payment any    `json:"payment"`
}

// PublishOutcome pushes a finished poll session to the clients watching it and
// closes their connections. Register it with Poller.Subscribe.
func (h *Hub) PublishOutcome(o checkout.Outcome) {
	h.Publish(o.CheckoutRequestID, Event{Type: EventPaymentSettled, Payment: o}, true)
}
