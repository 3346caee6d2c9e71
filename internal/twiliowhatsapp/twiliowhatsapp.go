// Package twiliowhatsapp wraps the Twilio API for FuncBot's WhatsApp
// transport.
//
// Twilio cannot edit a delivered message, so progress re-renders fall back
// to fresh messages, and media is delivered by URL, which requires the file
// server mounted by the HTTP API.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string // sender in "whatsapp:+1234567890" format
	// FileBaseURL is the public URL prefix under which the bot's data
	// directory is served; documents are delivered as links beneath it.
	FileBaseURL string
	// DataDir is the local directory FileBaseURL maps to.
	DataDir string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// WithFileServer maps the local data directory to its public URL prefix for
// media delivery.
func WithFileServer(baseURL, dataDir string) Option {
	return func(o *Opts) {
		o.FileBaseURL = strings.TrimRight(baseURL, "/")
		o.DataDir = dataDir
	}
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client      *twilio.RestClient
	fromWhats   string
	fileBaseURL string
	dataDir     string
}

// NewClient creates a Twilio WhatsApp client. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER environment
// variables when not provided as options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{
		client:      client,
		fromWhats:   cfg.FromWhats,
		fileBaseURL: cfg.FileBaseURL,
		dataDir:     cfg.DataDir,
	}, nil
}

// SendMessage sends a WhatsApp message and returns its Twilio SID.
func (c *Client) SendMessage(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "error", err, "to", to)
		return "", fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return sid, nil
}

// EditMessage sends a replacement message. Twilio offers no in-place edit,
// so progress updates arrive as new messages on this transport.
func (c *Client) EditMessage(ctx context.Context, to, messageID, body string) error {
	_, err := c.SendMessage(ctx, to, body)
	return err
}

// SendDocument delivers the file at path as a media message. The file must
// live under the configured data directory so it resolves to a public URL.
func (c *Client) SendDocument(ctx context.Context, to, path, caption string) error {
	mediaURL, err := c.publicURL(path)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(caption)
	params.SetMediaUrl([]string{mediaURL})

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendDocument failed", "error", err, "to", to, "path", path)
		return fmt.Errorf("failed to send document to %s: %w", to, err)
	}
	return nil
}

func (c *Client) publicURL(path string) (string, error) {
	if c.fileBaseURL == "" || c.dataDir == "" {
		return "", fmt.Errorf("document delivery requires the file server to be configured")
	}
	rel, err := filepath.Rel(c.dataDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("document %s is outside the served data directory", path)
	}
	return c.fileBaseURL + "/" + filepath.ToSlash(rel), nil
}

// MockClient records outbound traffic without calling Twilio, for tests.
type MockClient struct {
	SentMessages  []SentMessage
	SentDocuments []SentDocument
}

type SentMessage struct {
	To   string
	Body string
}

type SentDocument struct {
	To      string
	Path    string
	Caption string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to, body string) (string, error) {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return fmt.Sprintf("SM%04d", len(m.SentMessages)), nil
}

func (m *MockClient) EditMessage(ctx context.Context, to, messageID, body string) error {
	_, err := m.SendMessage(ctx, to, body)
	return err
}

func (m *MockClient) SendDocument(ctx context.Context, to, path, caption string) error {
	m.SentDocuments = append(m.SentDocuments, SentDocument{To: to, Path: path, Caption: caption})
	return nil
}
