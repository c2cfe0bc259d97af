package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("API_ID", "123")
	t.Setenv("API_HASH", "hash")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("BATCH_PAGE_SIZE", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("конфиг должен быть валиден: %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Database.Name != "word_replacer" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
	if cfg.Batch.PageSize != MaxPageSize {
		t.Errorf("PageSize должен быть ограничен %d, получили %d", MaxPageSize, cfg.Batch.PageSize)
	}
	if cfg.Batch.PolicyTTL != 0 || cfg.Batch.LockTTL != 10*time.Minute {
		t.Errorf("unexpected batch config: %+v", cfg.Batch)
	}
	if cfg.Flood.MaxRetries != 1000 || cfg.DialogTimeout != 5*time.Minute {
		t.Errorf("unexpected flood/dialog config: %+v %v", cfg.Flood, cfg.DialogTimeout)
	}
	if cfg.Telegram.OwnerID != 42 {
		t.Errorf("OwnerID = %d", cfg.Telegram.OwnerID)
	}
}

func TestValidateReportsMissing(t *testing.T) {
	var cfg AppConfig
	cfg.Batch.LockTTL = time.Minute
	err := cfg.Validate()
	if err == nil {
		t.Fatal("ожидали ошибку")
	}
	for _, name := range []string{"BOT_TOKEN", "API_ID", "API_HASH", "OWNER_ID"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("ошибка должна упоминать %s: %v", name, err)
		}
	}
}
