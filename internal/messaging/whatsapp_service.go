package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/whatsapp"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and response
	// channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel handoffs; a full
	// channel drops the event rather than stalling the event handler.
	DefaultChannelTimeout = 1 * time.Second
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// WhatsAppService implements Service using the whatsmeow-based client.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client, needed for event handling
	receipts  chan models.Receipt
	responses chan models.Response
}

// NewWhatsAppService creates a WhatsAppService over the given sender. Event
// handling requires a full client; with a mock sender only outbound traffic
// works.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	return s
}

// ValidateAndCanonicalizeRecipient enforces E.164 phone numbers, adding the
// leading plus when missing.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	normalized := strings.TrimSpace(recipient)
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

// Start registers the inbound event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService Start without full client, skipping event handling")
		return nil
	}
	go s.handleEvents(ctx)
	return nil
}

// Stop closes the event channels.
func (s *WhatsAppService) Stop() error {
	close(s.receipts)
	close(s.responses)
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to, body string) (string, error) {
	id, err := s.client.SendMessage(ctx, to, body)
	if err != nil {
		return "", err
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return id, nil
}

// EditMessage replaces an earlier message's text in place.
func (s *WhatsAppService) EditMessage(ctx context.Context, to, messageID, body string) error {
	return s.client.EditMessage(ctx, to, messageID, body)
}

// SendDocument delivers a local file with a caption.
func (s *WhatsAppService) SendDocument(ctx context.Context, to, path, caption string) error {
	return s.client.SendDocument(ctx, to, path, caption)
}

// Receipts returns the receipt event channel.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the inbound response channel.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents has no underlying client")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService event handler stopping")
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		text = *evt.Message.ExtendedTextMessage.Text
	default:
		// Non-text payloads (images for video generation) arrive as media;
		// they are surfaced to flows through the media downloader instead.
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	from := evt.Info.Sender.User
	if !strings.HasPrefix(from, "+") {
		from = "+" + from
	}

	response := models.Response{From: from, Body: text, Time: evt.Info.Timestamp.Unix()}
	select {
	case s.responses <- response:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", from)
	}
}

func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	to := evt.MessageSource.Sender.User
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}

	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}

	s.emitReceipt(models.Receipt{To: to, Status: status, Time: evt.Timestamp.Unix()})
}

func (s *WhatsAppService) emitReceipt(receipt models.Receipt) {
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}
