// Package transport holds the channel-specific send primitives used by the
// delivery engine.
package transport

import "context"

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// EmailSender delivers a message body to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, address, text string) error
}

// DirectMessageSender delivers a message body to a messaging-app handle.
type DirectMessageSender interface {
	SendDirectMessage(ctx context.Context, handle, text string) error
}
