//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/adapter/kafka"
	"github.com/couchcryptid/seedtime-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	"github.com/couchcryptid/seedtime-etl/internal/pipeline"
	"github.com/couchcryptid/seedtime-etl/internal/publish"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSheetTopic = "test-event-sheets"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("seedtime-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type sheetRecord struct {
	Message kafka.SheetMessage
	Key     string
	Headers map[string]string
}

func readSheet(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sheetRecord {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sheet topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var m kafka.SheetMessage
	require.NoError(t, json.Unmarshal(msg.Value, &m))
	return sheetRecord{Message: m, Key: string(msg.Key), Headers: headers}
}

// staticOracle converts every request to the same time.
type staticOracle struct{ result string }

func (o staticOracle) Open(context.Context) (domain.OracleSession, error) { return o, nil }

func (o staticOracle) Convert(context.Context, domain.ConversionRequest) (string, error) {
	return o.result, nil
}

func (o staticOracle) Close(context.Context) error { return nil }

type memRoster struct{ table *domain.Table }

func (m *memRoster) Load(context.Context, string) (*domain.Table, error) { return m.table.Clone(), nil }
func (m *memRoster) Save(context.Context, string, *domain.Table) error   { return nil }

// TestPipelinePublishesSheetsToKafka runs the full pipeline with the workbook
// and Kafka sinks and checks every category arrives on the topic in order.
func TestPipelinePublishesSheetsToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSheetTopic)

	header := []string{"Registration ID", "First Name", "Last Name", domain.EventColumn, domain.PR800Field, domain.Altitude800Field}
	table, err := domain.NewTable(header, [][]string{
		{"1", "Ana", "A", "RunningLane Track Championships 800m Run (Boys)", "0:02:10", "5280"},
		{"2", "Bo", "B", "RunningLane Track Championships 800m Run (Boys)", "0:02:01", ""},
	})
	require.NoError(t, err)

	writer := kafka.NewWriter([]string{broker}, testSheetTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	workbook, err := sqlite.Open(t.TempDir()+"/workbook.db", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = workbook.Close() })

	metrics := observability.NewMetricsForTesting()
	sink := publish.NewMultiSink(metrics, discardLogger(),
		publish.Named{Name: "workbook", Sink: workbook},
		publish.Named{Name: "kafka", Sink: writer},
	)
	orch := pipeline.NewOrchestrator(staticOracle{result: "2:05:31"}, discardLogger(), metrics)
	p := pipeline.New(&memRoster{table: table}, orch, sink, pipeline.Options{InputFile: "roster.csv", Workers: 1}, discardLogger(), metrics)

	report, err := p.Run(ctx)
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSheetTopic,
		GroupID:     fmt.Sprintf("test-sheets-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]sheetRecord, 0, len(domain.Categories))
	for len(received) < len(domain.Categories) {
		received = append(received, readSheet(ctx, t, consumer))
	}

	for i, c := range domain.Categories {
		assert.Equal(t, c.SheetName, received[i].Key, "sheet order")
		assert.Equal(t, report.RunID, received[i].Headers["run_id"])
		assert.NotEmpty(t, received[i].Headers["digest"])
	}

	var boys sheetRecord
	for _, r := range received {
		if r.Key == "800m Boys" {
			boys = r
		}
	}
	assert.Equal(t, [][]string{
		{"2", "Bo", "B", "00:02:01", ""},
		{"1", "Ana", "A", "02:05:31", "*"},
	}, boys.Message.Rows)

	stored, err := workbook.Sheets(ctx)
	require.NoError(t, err)
	require.Len(t, stored, len(domain.Categories))
	for i, s := range stored {
		assert.Equal(t, received[i].Headers["digest"], s.Digest(), "workbook and topic agree on %s", s.Name)
	}
}
