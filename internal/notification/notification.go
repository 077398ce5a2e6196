package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notice variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notice is the short message shown to the operator after an action.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Success builds a default-variant notice.
func Success(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive-variant notice.
func Failure(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// Notifier delivers notices beyond the HTTP response.
type Notifier interface {
	Send(ctx context.Context, notice Notice) error
}

// LoggerNotifier writes notices to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the notice to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, notice Notice) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if notice.Variant == VariantDestructive {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notice", "title", notice.Title, "description", notice.Description)
	return nil
}

// WriterNotifier prints notices as plain lines, for the command line.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier prints to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Send prints "Title: description", prefixed with "error: " for failures.
func (n *WriterNotifier) Send(_ context.Context, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	prefix := ""
	if notice.Variant == VariantDestructive {
		prefix = "error: "
	}
	if notice.Description == "" {
		_, err := fmt.Fprintf(n.w, "%s%s\n", prefix, notice.Title)
		return err
	}
	_, err := fmt.Fprintf(n.w, "%s%s: %s\n", prefix, notice.Title, notice.Description)
	return err
}
