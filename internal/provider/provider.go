// Package provider abstracts the outbound WhatsApp channel. Two generations
// exist: a self-hosted web-client bridge and the hosted Business Cloud API.
// The dispatch pipeline only sees this interface.
package provider

import (
	"context"
	"errors"

	"regnotify/pkg/sentinel"
)

// Provider is an outbound messaging channel. Send methods return the
// provider-assigned message id when the generation reports one.
type Provider interface {
	// Name identifies the generation ("webclient" or "cloudapi").
	Name() string

	// Address converts a bare mobile number into this generation's recipient
	// address. Group ids stored in settings are passed to Send methods as-is.
	Address(mobile string) string

	// Connected reports whether the channel can deliver right now. The
	// dispatch loop skips its cycle entirely while disconnected.
	Connected(ctx context.Context) bool

	// SendText delivers a plain text message.
	SendText(ctx context.Context, to, text string) (string, error)

	// SendMedia delivers an image or document with an optional caption.
	SendMedia(ctx context.Context, to string, media []byte, filename, caption string) (string, error)

	// SendTemplate delivers a pre-approved template with positional body
	// parameters. Only the hosted generation supports this.
	SendTemplate(ctx context.Context, to, name string, params []string) (string, error)

	// Logout tears down the channel session where the generation has one.
	Logout(ctx context.Context) error
}

// IsPermanent reports whether a send error will not succeed on retry, such as
// a malformed recipient. The dispatcher exhausts the retry budget immediately
// for these instead of burning three attempts.
func IsPermanent(err error) bool {
	return errors.Is(err, sentinel.ErrPermanent)
}
