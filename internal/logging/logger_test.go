package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"textsummarize/internal/logging"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "warn", logging.FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Info("hidden")
	log.Error("Summary action failed", "code", "InvalidRequest")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info record to be filtered, got %s", out)
	}
	if !strings.Contains(out, `"code":"InvalidRequest"`) {
		t.Fatalf("expected error record, got %s", out)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Info("Returning summarized text", "operationID", "job-1")
	if !strings.Contains(buf.String(), "Returning summarized text") {
		t.Fatalf("expected record, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("DEBUG")
	if err != nil || lvl != slog.LevelDebug {
		t.Fatalf("unexpected level %v err %v", lvl, err)
	}

	if _, err = logging.ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
