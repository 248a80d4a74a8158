package dispatch

import "context"

// Message is a single rendered notification for one recipient.
type Message struct {
	Recipient string
	Subject   string
	Text      string
	HTML      string
	Category  string
}

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f(ctx, msg).
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
