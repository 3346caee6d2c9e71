package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio WhatsApp client.
// Inbound traffic arrives over the HTTP webhook, which hands messages in
// through ReceiveInbound.
type TwilioService struct {
	client    *twiliowhatsapp.Client
	receipts  chan models.Receipt
	responses chan models.Response
}

// NewTwilioService creates a TwilioService over the given client.
func NewTwilioService(client *twiliowhatsapp.Client) *TwilioService {
	return &TwilioService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient enforces E.164 numbers, stripping the
// webhook's "whatsapp:" prefix first.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	normalized := strings.TrimSpace(strings.TrimPrefix(recipient, "whatsapp:"))
	if normalized == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	if !e164Pattern.MatchString(normalized) {
		return "", fmt.Errorf("recipient %q is not a valid E.164 phone number", recipient)
	}
	return normalized, nil
}

// Start is a no-op; inbound traffic is webhook-driven.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *TwilioService) Stop() error {
	close(s.receipts)
	close(s.responses)
	slog.Info("TwilioService stopped")
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to, body string) (string, error) {
	id, err := s.client.SendMessage(ctx, to, body)
	if err != nil {
		return "", err
	}
	select {
	case s.receipts <- models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()}:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService receipts channel blocked, dropping receipt", "to", to)
	}
	return id, nil
}

// EditMessage sends a replacement message; Twilio cannot edit in place.
func (s *TwilioService) EditMessage(ctx context.Context, to, messageID, body string) error {
	return s.client.EditMessage(ctx, to, messageID, body)
}

// SendDocument delivers a local file with a caption.
func (s *TwilioService) SendDocument(ctx context.Context, to, path, caption string) error {
	return s.client.SendDocument(ctx, to, path, caption)
}

// Receipts returns the receipt event channel.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the inbound response channel.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// ReceiveInbound feeds one webhook-delivered message into the response
// channel. The sender is canonicalized first; malformed senders are
// rejected.
func (s *TwilioService) ReceiveInbound(from, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		return err
	}
	response := models.Response{From: canonical, Body: body, Time: time.Now().Unix()}
	select {
	case s.responses <- response:
		return nil
	case <-time.After(DefaultChannelTimeout):
		return fmt.Errorf("responses channel blocked, message from %s dropped", canonical)
	}
}
