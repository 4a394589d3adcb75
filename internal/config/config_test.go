package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaultsLoadCleanly(t *testing.T) {
	resetViper(t)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults error = %v", err)
	}
	if cfg.Server.ListenAddr != ":8090" {
		t.Errorf("ListenAddr = %q, want :8090", cfg.Server.ListenAddr)
	}
	if cfg.Server.MaxDocuments != 10 {
		t.Errorf("MaxDocuments = %d, want 10", cfg.Server.MaxDocuments)
	}
	if cfg.Locks.IdleWindow() != 5*time.Second {
		t.Errorf("IdleWindow() = %v, want 5s", cfg.Locks.IdleWindow())
	}
	if cfg.Locks.SweepInterval() != 5*time.Second {
		t.Errorf("SweepInterval() = %v, want 5s", cfg.Locks.SweepInterval())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("server.listen_addr", "127.0.0.1:9000")
	viper.Set("locks.idle_window_seconds", 30)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q, want override", cfg.Server.ListenAddr)
	}
	if cfg.Locks.IdleWindow() != 30*time.Second {
		t.Errorf("IdleWindow() = %v, want 30s", cfg.Locks.IdleWindow())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		field string
	}{
		{name: "bad listen addr", key: "server.listen_addr", value: "no-port", field: "server.listen_addr"},
		{name: "zero capacity", key: "server.max_documents", value: 0, field: "server.max_documents"},
		{name: "huge capacity", key: "server.max_documents", value: 100000, field: "server.max_documents"},
		{name: "zero idle window", key: "locks.idle_window_seconds", value: 0, field: "locks.idle_window_seconds"},
		{name: "zero sweep interval", key: "locks.sweep_interval_seconds", value: 0, field: "locks.sweep_interval_seconds"},
		{name: "unknown log level", key: "logging.level", value: "loud", field: "logging.level"},
		{name: "zero log size", key: "logging.max_size_mb", value: 0, field: "logging.max_size_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			SetDefaults()
			viper.Set(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %s", err.Error(), tt.field)
			}
		})
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message %q does not report the count", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("message %q does not include the first error", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if single.Error() != "a: bad (got: 1)" {
		t.Errorf("single error message = %q", single.Error())
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("empty ValidationErrors should format to empty string")
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("server.max_documents", "not-a-number-map")

	cfg := Get()
	if cfg.Server.MaxDocuments != Default().Server.MaxDocuments {
		t.Errorf("Get() fallback MaxDocuments = %d, want default", cfg.Server.MaxDocuments)
	}
}

func TestResolveDocumentDirDefaults(t *testing.T) {
	s := ServerConfig{DocumentDir: ""}
	if got := s.ResolveDocumentDir(); got == "" {
		t.Error("ResolveDocumentDir() = empty, want config-dir fallback")
	}

	s = ServerConfig{DocumentDir: "/var/lib/coedit"}
	if got := s.ResolveDocumentDir(); got != "/var/lib/coedit" {
		t.Errorf("ResolveDocumentDir() = %q, want absolute path unchanged", got)
	}
}
