package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/publish"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// SheetMessage is the JSON value of one published sheet.
type SheetMessage struct {
	Sheet   string     `json:"sheet"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Writer produces one message per sheet, keyed by sheet name, so a compacted
// topic holds the latest version of every sheet.
// It implements publish.Sink.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// Publish writes one message and waits for it, so there is no batch to fill.
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// Publish serializes the sheet and writes it as a single message.
func (w *Writer) Publish(ctx context.Context, sheet string, rows [][]string) error {
	msg, err := serializeToMessage(sheet, rows, publish.RunID(ctx), w.clock.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write sheet %q: %w", sheet, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a sheet into a Kafka message.
func serializeToMessage(sheet string, rows [][]string, runID string, now time.Time) (kafkago.Message, error) {
	m := SheetMessage{Sheet: sheet, Columns: []string{}, Rows: [][]string{}}
	if len(rows) > 0 {
		m.Columns = rows[0]
		m.Rows = append(m.Rows, rows[1:]...)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sheet %q: %w", sheet, err)
	}
	digest := domain.EventSheet{Name: sheet, Columns: m.Columns, Rows: m.Rows}.Digest()
	return kafkago.Message{
		Key:   []byte(sheet),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "digest", Value: []byte(digest)},
			{Key: "published_at", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}, nil
}
