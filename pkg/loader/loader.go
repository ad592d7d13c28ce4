// Package loader stamps fetched CVE records with an ingestion timestamp and
// writes each one independently to storage.
package loader

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ssn-data/nvd-etl-connector/pkg/storage"
)

// Prometheus metrics for insert operations.
var insertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cve_inserts_total",
	Help: "Total insert attempts by result",
}, []string{"result"})

// TimestampLayout is the ingestion timestamp format: ISO-8601 UTC with
// millisecond precision, timezone qualified.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// timestampField is injected into every record before persistence.
const timestampField = "ingestionTimestamp"

// Summary reports the outcome of a load. Per-record failures are counted,
// never surfaced.
type Summary struct {
	Inserted int
	Total    int
}

// Loader writes records to an Inserter one at a time.
type Loader struct {
	target storage.Inserter
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a loader writing to target.
func New(target storage.Inserter) *Loader {
	return &Loader{
		target: target,
		logger: log.With().Str("component", "loader").Logger(),
		now:    time.Now,
	}
}

// Load stamps and inserts every record sequentially. A storage error or an
// unacknowledged write is logged and counted; the batch always runs to
// completion.
func (l *Loader) Load(ctx context.Context, records []map[string]any) Summary {
	summary := Summary{Total: len(records)}

	for _, record := range records {
		record[timestampField] = l.now().UTC().Format(TimestampLayout)

		acknowledged, err := l.target.InsertOne(ctx, record)
		switch {
		case err != nil:
			insertsTotal.WithLabelValues("failed").Inc()
			l.logger.Error().
				Err(err).
				Str("cve", recordID(record)).
				Msg("Could not insert CVE")
		case !acknowledged:
			insertsTotal.WithLabelValues("unacknowledged").Inc()
			l.logger.Warn().
				Str("cve", recordID(record)).
				Msg("Insert not acknowledged")
		default:
			insertsTotal.WithLabelValues("inserted").Inc()
			summary.Inserted++
		}
	}

	l.logger.Info().
		Int("inserted", summary.Inserted).
		Int("total", summary.Total).
		Msg("Insert batch complete")

	return summary
}

// SetNow replaces the timestamp source (for testing).
func (l *Loader) SetNow(now func() time.Time) {
	l.now = now
}

// recordID extracts the nested cve.id for diagnostics.
func recordID(record map[string]any) string {
	cve, ok := record["cve"].(map[string]any)
	if !ok {
		return "unknown"
	}
	id, ok := cve["id"].(string)
	if !ok {
		return "unknown"
	}
	return id
}
