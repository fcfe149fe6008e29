// ABOUTME: Collaborator types for the external contact channel
// ABOUTME: Defines the normalized inbound record and the outbound Sender interface

package messaging

import (
	"context"
	"time"
)

// Inbound is a normalized message received from the contact channel.
// ContactID is the channel's stable identifier for the sender.
type Inbound struct {
	ContactID  string
	Text       string
	HasMedia   bool
	ReceivedAt time.Time
}

// Sender delivers outbound traffic to the contact channel.
//
// Ready reports whether the channel connection is usable; the router
// checks it before invoking the dialogue engine so that replies are not
// produced while the channel is down.
type Sender interface {
	Send(ctx context.Context, contactID, text string) error
	SendTyping(ctx context.Context, contactID string, hint time.Duration) error
	Ready() bool
}
