package whatsapp

import (
	"context"
	"testing"
)

func TestOptions(t *testing.T) {
	var cfg Opts
	for _, opt := range []Option{
		WithDBDSN("file:wa.db?_foreign_keys=on"),
		WithQRCodeOutput("/tmp/qr.txt"),
		WithNumericCode(),
	} {
		opt(&cfg)
	}
	if cfg.DBDSN != "file:wa.db?_foreign_keys=on" {
		t.Errorf("unexpected DSN %q", cfg.DBDSN)
	}
	if cfg.QRPath != "/tmp/qr.txt" {
		t.Errorf("unexpected QR path %q", cfg.QRPath)
	}
	if !cfg.NumericCode {
		t.Error("numeric code option not applied")
	}
}

func TestMockClientImplementsSender(t *testing.T) {
	var s Sender = NewMockClient()
	id, err := s.SendMessage(context.Background(), "+15551234567", "hello")
	if err != nil || id == "" {
		t.Errorf("unexpected mock send result: %q %v", id, err)
	}
	if err := s.EditMessage(context.Background(), "+15551234567", id, "edited"); err != nil {
		t.Errorf("unexpected mock edit error: %v", err)
	}
	if err := s.SendDocument(context.Background(), "+15551234567", "/tmp/a.zip", "archive"); err != nil {
		t.Errorf("unexpected mock document error: %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	c := &Client{}
	if _, err := c.SendMessage(context.Background(), "", "body"); err == nil {
		t.Error("expected an error for empty recipient")
	}
	if _, err := c.SendMessage(context.Background(), "+15551234567", ""); err == nil {
		t.Error("expected an error for empty body")
	}
}
