package backend

import (
	"context"
	"path/filepath"
	"testing"

	"billremind/internal/config"
	"billremind/internal/messaging"
	"billremind/internal/messaging/digisac"
	"billremind/internal/messaging/twilio"
	"billremind/internal/storage"
	"billremind/internal/storage/memory"
)

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*storage.Repository)(nil)
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x", MessagingProvider: "twilio"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://x" || cfg.Messaging.Provider != "twilio" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "mongo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	mem, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mem.Store.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", mem.Store)
	}

	res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "b.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()
	if err := res.Store.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestFactory_CreateSender(t *testing.T) {
	f := NewFactory(nil)
	tests := []struct {
		provider string
		check    func(messaging.Sender) bool
		wantErr  bool
	}{
		{"log", func(s messaging.Sender) bool { _, ok := s.(messaging.LogSender); return ok }, false},
		{"digisac", func(s messaging.Sender) bool { _, ok := s.(*digisac.Client); return ok }, false},
		{"twilio", func(s messaging.Sender) bool { _, ok := s.(*twilio.Client); return ok }, false},
		{"pigeon", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			s, err := f.CreateSender(Config{Messaging: MessagingConfig{
				Provider:         tt.provider,
				DigisacAPIURL:    "https://example.test/api/v1",
				DigisacAPIToken:  "tok",
				TwilioAccountSID: "AC123",
				TwilioAuthToken:  "tok",
				TwilioFromNumber: "+15550001111",
			}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateSender() error = %v", err)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("unexpected sender %T", s)
			}
		})
	}
}

func TestFactory_LedgerPublisherDisabledWithoutAMQP(t *testing.T) {
	pub, cleanup, err := NewFactory(nil).CreateLedgerPublisher(Config{})
	if err != nil || pub != nil || cleanup != nil {
		t.Errorf("expected disabled publisher, got %v %v %v", pub, cleanup != nil, err)
	}
}
