package persist

// RunRecord is one driver.Run invocation, recorded for `incrc compile`'s own
// history (distinct from the Analysis it produced).
type RunRecord struct {
	ID               int64
	SourcesCompiled  int
	InvalidatedCount int
	Cycles           int
	DurationMs       int64
	RecordedAtNanos  int64
}

// RunAggregate summarizes RunRecords within a time window.
type RunAggregate struct {
	RunCount         int64
	TotalSources     int64
	TotalInvalidated int64
	TotalCycles      int64
	TotalDurationMs  int64
}

// AvgDurationMs returns the mean wall-clock duration per run.
func (a *RunAggregate) AvgDurationMs() float64 {
	if a.RunCount == 0 {
		return 0
	}
	return float64(a.TotalDurationMs) / float64(a.RunCount)
}

// AvgInvalidated returns the mean invalidated-source count per run.
func (a *RunAggregate) AvgInvalidated() float64 {
	if a.RunCount == 0 {
		return 0
	}
	return float64(a.TotalInvalidated) / float64(a.RunCount)
}

const metricsSchemaV1 = `
CREATE TABLE IF NOT EXISTS run_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sources_compiled INTEGER NOT NULL,
	invalidated_count INTEGER NOT NULL,
	cycles INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at_nanos INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_metrics_recorded_at
	ON run_metrics(recorded_at_nanos);
`

func (s *Store) initializeMetricsSchema() error {
	_, err := s.conn.Exec(metricsSchemaV1)
	return err
}

// RecordRun appends one driver run's stats to the history.
func (s *Store) RecordRun(rec RunRecord) error {
	_, err := s.conn.Exec(
		`INSERT INTO run_metrics (sources_compiled, invalidated_count, cycles, duration_ms, recorded_at_nanos)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SourcesCompiled, rec.InvalidatedCount, rec.Cycles, rec.DurationMs, rec.RecordedAtNanos,
	)
	return err
}

// RunAggregateSince summarizes every run recorded at or after sinceNanos.
func (s *Store) RunAggregateSince(sinceNanos int64) (*RunAggregate, error) {
	row := s.conn.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(sources_compiled), 0),
			COALESCE(SUM(invalidated_count), 0),
			COALESCE(SUM(cycles), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM run_metrics
		WHERE recorded_at_nanos >= ?`, sinceNanos)

	agg := &RunAggregate{}
	if err := row.Scan(&agg.RunCount, &agg.TotalSources, &agg.TotalInvalidated, &agg.TotalCycles, &agg.TotalDurationMs); err != nil {
		return nil, err
	}
	return agg, nil
}

// RecentRuns returns the last n runs, most recent first.
func (s *Store) RecentRuns(n int) ([]RunRecord, error) {
	rows, err := s.conn.Query(
		`SELECT id, sources_compiled, invalidated_count, cycles, duration_ms, recorded_at_nanos
		 FROM run_metrics ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.SourcesCompiled, &rec.InvalidatedCount, &rec.Cycles, &rec.DurationMs, &rec.RecordedAtNanos); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
