package twiliowhatsapp

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected an error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected an error without a from number")
	}
}

func TestPublicURL(t *testing.T) {
	dataDir := t.TempDir()
	c := &Client{fileBaseURL: "https://bot.example.com/files", dataDir: dataDir}

	url, err := c.publicURL(filepath.Join(dataDir, "conv-1", "images.zip"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://bot.example.com/files/conv-1/images.zip" {
		t.Errorf("unexpected URL %q", url)
	}

	if _, err := c.publicURL("/etc/passwd"); err == nil {
		t.Error("expected an error for a path outside the data directory")
	}

	unconfigured := &Client{}
	if _, err := unconfigured.publicURL("/anything"); err == nil {
		t.Error("expected an error without a file server")
	}
}

func TestMockClientRecordsTraffic(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	id, err := m.SendMessage(ctx, "+15551234567", "hello")
	if err != nil || id == "" {
		t.Fatalf("unexpected send result: %q %v", id, err)
	}
	if err := m.EditMessage(ctx, "+15551234567", id, "update"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendDocument(ctx, "+15551234567", "/data/a.zip", "archive"); err != nil {
		t.Fatal(err)
	}

	if len(m.SentMessages) != 2 {
		t.Errorf("expected 2 sent messages (edit falls back to send), got %d", len(m.SentMessages))
	}
	if len(m.SentDocuments) != 1 {
		t.Errorf("expected 1 sent document, got %d", len(m.SentDocuments))
	}
}
