package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)

	if err := n.Send(context.Background(), Success("User created", "Ann was added")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := n.Send(context.Background(), Failure("Error", "Failed to create user")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := n.Send(context.Background(), Success("Closed", "")); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := "User created: Ann was added\nerror: Error: Failed to create user\nClosed\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestLoggerNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLoggerNotifier(logger)

	_ = n.Send(context.Background(), Failure("Error", "boom"))

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "WARN" || line["description"] != "boom" {
		t.Fatalf("unexpected log line %v", line)
	}

	var nilNotifier *LoggerNotifier
	if err := nilNotifier.Send(context.Background(), Success("x", "y")); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
}
