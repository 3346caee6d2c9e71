// Package messaging defines the pluggable message transport used by the
// conversational engine and bridges inbound traffic into the dispatcher.
package messaging

import (
	"context"

	"github.com/FuncStore/FuncBot/internal/models"
)

// Service defines a pluggable message delivery abstraction. It supports
// sending, in-place edits, and document delivery, and exposes channels for
// receipt and response events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier per the transport's own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message and returns its transport message ID.
	SendMessage(ctx context.Context, to, body string) (string, error)

	// EditMessage replaces the text of an earlier message where the
	// transport supports it.
	EditMessage(ctx context.Context, to, messageID, body string) error

	// SendDocument delivers a local file with a caption.
	SendDocument(ctx context.Context, to, path, caption string) error

	// Start begins any background processing (e.g. event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming user responses.
	Responses() <-chan models.Response
}
