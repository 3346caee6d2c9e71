// Package whatsapp wraps the whatsmeow client for FuncBot's WhatsApp
// transport.
//
// It provides message sending, in-place message edits for progress
// re-rendering, and document delivery for generated archives and videos.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/FuncStore/FuncBot/internal/store"
)

const (
	// DefaultSQLitePath is the default whatsmeow session database location.
	DefaultSQLitePath = "/var/lib/funcbot/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users.
	JIDSuffix = "s.whatsapp.net"
)

// Sender is the outbound surface of the WhatsApp client used by the
// messaging layer and by tests.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) (string, error)
	EditMessage(ctx context.Context, to, messageID, body string) error
	SendDocument(ctx context.Context, to, path, caption string) error
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow session database connection string
	QRPath      string // path to write the login QR code
	NumericCode bool   // print a numeric login code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow session database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the login QR code to the given path instead of
// stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode prints a numeric login code instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// Client wraps the whatsmeow client for modular use.
type Client struct {
	waClient *whatsmeow.Client
}

// NewClient creates and connects a WhatsApp client. A session database is
// opened (or created) at the configured DSN; when no session exists yet the
// login QR flow runs before returning.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
	}
	dbDriver := "sqlite3"
	if store.DetectDSNType(dbDSN) == "postgres" {
		dbDriver = "postgres"
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, dbDriver, dbDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp session store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	if waClient.Store.ID == nil {
		slog.Info("WhatsApp login required, starting QR code flow")
		qrChan, _ := waClient.GetQRChannel(context.Background())
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, ferr := os.Create(cfg.QRPath)
			if ferr != nil {
				return nil, fmt.Errorf("failed to create QR file: %w", ferr)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				if cfg.NumericCode {
					fmt.Fprintln(writer, evt.Code)
				} else {
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
				}
			} else {
				slog.Debug("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected")
	return &Client{waClient: waClient}, nil
}

// SendMessage sends a text message and returns the message ID for later
// edits.
func (c *Client) SendMessage(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return "", fmt.Errorf("message body cannot be empty")
	}

	jid := types.NewJID(to, JIDSuffix)
	resp, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body})
	if err != nil {
		slog.Error("WhatsApp SendMessage failed", "error", err, "to", to)
		return "", fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return resp.ID, nil
}

// EditMessage replaces the text of an earlier message in place.
func (c *Client) EditMessage(ctx context.Context, to, messageID, body string) error {
	if messageID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}
	jid := types.NewJID(to, JIDSuffix)
	edit := c.waClient.BuildEdit(jid, messageID, &waE2E.Message{Conversation: &body})
	if _, err := c.waClient.SendMessage(ctx, jid, edit); err != nil {
		slog.Error("WhatsApp EditMessage failed", "error", err, "to", to, "messageID", messageID)
		return fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	return nil
}

// SendDocument uploads the file at path and sends it as a document message.
func (c *Client) SendDocument(ctx context.Context, to, path, caption string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	uploaded, err := c.waClient.Upload(ctx, raw, whatsmeow.MediaDocument)
	if err != nil {
		slog.Error("WhatsApp document upload failed", "error", err, "to", to, "path", path)
		return fmt.Errorf("failed to upload document: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	fileName := filepath.Base(path)
	fileLength := uint64(len(raw))

	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		URL:           &uploaded.URL,
		DirectPath:    &uploaded.DirectPath,
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    &fileLength,
		Mimetype:      &mimeType,
		FileName:      &fileName,
		Caption:       &caption,
	}}

	jid := types.NewJID(to, JIDSuffix)
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("WhatsApp SendDocument failed", "error", err, "to", to, "path", path)
		return fmt.Errorf("failed to send document to %s: %w", to, err)
	}
	return nil
}

// GetClient returns the underlying whatsmeow client for event handling.
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// MockClient implements Sender without a WhatsApp connection, for tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to, body string) (string, error) {
	return "mock-id", nil
}

func (m *MockClient) EditMessage(ctx context.Context, to, messageID, body string) error {
	return nil
}

func (m *MockClient) SendDocument(ctx context.Context, to, path, caption string) error {
	return nil
}
