// Package transcript appends handled message exchanges to a flat file and
// reads them back for the dashboard API. The file is the only state that
// survives a restart; the pipeline itself never reads it.
package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

var linePattern = regexp.MustCompile(`^\[(.*?)\] FROM: (.*?) \| MESSAGE: (.*?) \| REPLY: (.*)$`)

// Entry is one parsed transcript line.
type Entry struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	Message   string `json:"message"`
	Reply     string `json:"reply"`
}

// Book owns the append-only transcript file.
type Book struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewBook creates a transcript book writing to path.
func NewBook(log *slog.Logger, path string) *Book {
	if log == nil {
		log = slog.Default()
	}
	return &Book{
		path:   path,
		logger: log.With(slog.String("service", "transcript")),
	}
}

// Record appends one exchange. Newlines inside fields are flattened so every
// exchange stays a single parseable line.
func (b *Book) Record(username, text, reply string, ts time.Time) error {
	line := fmt.Sprintf("[%s] FROM: %s | MESSAGE: %s | REPLY: %s\n",
		ts.Format(timeLayout), sanitize(username), sanitize(text), sanitize(reply))

	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	b.logger.Debug("message recorded", slog.String("from", username))
	return nil
}

// List parses the transcript back into entries, oldest first. A missing file
// yields an empty list. Unparseable lines are skipped.
func (b *Book) List() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := linePattern.FindStringSubmatch(line)
		if match == nil {
			b.logger.Warn("skipping unparseable transcript line")
			continue
		}
		entries = append(entries, Entry{
			Timestamp: match[1],
			From:      match[2],
			Message:   match[3],
			Reply:     match[4],
		})
	}
	return entries, nil
}

func sanitize(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "\r", " ")
}
