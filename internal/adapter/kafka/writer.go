package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/odata-mobility-chart/internal/config"
	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes every aggregated series of a run to a Kafka topic.
// It implements pipeline.Exporter.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Export sends one message per series in a single WriteMessages call.
func (w *Writer) Export(ctx context.Context, result domain.RunResult) error {
	msgs := make([]kafkago.Message, 0, result.Chart.SeriesCount())
	for _, panel := range result.Chart.Panels {
		for _, s := range panel.Series {
			msg, err := serializeToMessage(result, panel.Title, s)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish series: %w", err)
	}
	w.logger.Debug("series published", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// seriesMessage is the wire form of one series. Absent values are null.
type seriesMessage struct {
	RunID       string     `json:"run_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Panel       string     `json:"panel"`
	Series      string     `json:"series"`
	Years       []uint32   `json:"years"`
	Values      []*float64 `json:"values"`
}

// serializeToMessage marshals one series into a Kafka message keyed by
// panel and series name.
func serializeToMessage(result domain.RunResult, panel string, s domain.Series) (kafkago.Message, error) {
	body := seriesMessage{
		RunID:       result.RunID,
		GeneratedAt: result.GeneratedAt,
		Panel:       panel,
		Series:      s.Name,
		Years:       make([]uint32, len(s.Points)),
		Values:      make([]*float64, len(s.Points)),
	}
	for i, p := range s.Points {
		body.Years[i] = p.Year
		body.Values[i] = p.Value.Ptr()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series %q: %w", s.Name, err)
	}
	return kafkago.Message{
		Key:   []byte(panel + "/" + s.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "panel", Value: []byte(panel)},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
