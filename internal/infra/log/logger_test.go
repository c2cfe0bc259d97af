package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "prod"), "batch")
	logger.Debug().Msg("скрыто")
	logger.Info().Msg("видно")

	out := buf.String()
	if strings.Contains(out, "скрыто") {
		t.Fatalf("debug не должен писаться вне dev: %s", out)
	}
	if !strings.Contains(out, `"component":"batch"`) || !strings.Contains(out, "видно") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	devLogger := newLogger(&buf, "dev")
	devLogger.Debug().Msg("отладка")
	if !strings.Contains(buf.String(), "отладка") {
		t.Fatalf("в dev debug должен писаться: %s", buf.String())
	}
}
