package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// PartitionRecord is one recorded array task
type PartitionRecord struct {
	ID          int64
	RunID       string
	Stage       string
	TaskID      int
	TaskCount   int
	TotalItems  int
	Statistics  models.Statistics
	FailureRate float64
	Breached    bool
	SummaryPath string
	StartTime   time.Time
	EndTime     time.Time
}

// MergeRecord is one recorded merge
type MergeRecord struct {
	ID         int64
	Stage      string
	Tasks      int
	TotalItems int
	Releases   int
	Complete   int
	Partial    int
	Absent     int
	Skipped    int
	ReportPath string
	RecordedAt time.Time
}

// ItemOutcome is the recorded outcome of one item in one partition
type ItemOutcome struct {
	PartitionID int64
	RunID       string
	ItemKey     string
	Organism    string
	Release     int
	Status      models.Status
	Detail      string
	Duration    time.Duration
}

// RecordPartition stores a partition summary and every item outcome in one
// transaction. failureRate and breached are the gate evaluation for the
// summary at the time it was written.
func (s *Store) RecordPartition(ctx context.Context, sum *models.TaskSummary, summaryPath string, failureRate float64, breached bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	st := sum.Statistics
	res, err := tx.ExecContext(ctx, `INSERT INTO partitions
		(run_id, stage, task_id, task_count, total_items, success, not_found, failed, timeout, skipped, error, failure_rate, breached, summary_path, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Stage, sum.TaskID, sum.TaskCount, sum.TotalItems,
		st.Success, st.NotFound, st.Failed, st.Timeout, st.Skipped, st.Error,
		failureRate, breached, summaryPath, sum.StartTime.UTC(), sum.EndTime.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert partition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO item_outcomes
		(partition_id, item_key, organism, release_num, status, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range sum.Results {
		if _, err := stmt.ExecContext(ctx, id, r.Item.Key(), r.Item.Organism, r.Item.Release,
			string(r.Status), r.Detail, r.Duration.Milliseconds()); err != nil {
			return 0, fmt.Errorf("insert item %s: %w", r.Item.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit partition: %w", err)
	}
	return id, nil
}

// RecordMerge stores the headline numbers of a merged report.
func (s *Store) RecordMerge(ctx context.Context, r *models.MergedReport, reportPath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO merges
		(stage, tasks, total_items, releases, complete, partial, absent, skipped_summaries, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Stage, len(r.Tasks), r.TotalItems, len(r.Releases),
		len(r.Complete), len(r.Partial), len(r.Absent), len(r.Skipped), reportPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert merge: %w", err)
	}
	return res.LastInsertId()
}

// ListPartitions returns recorded partitions for stage, newest first. limit <= 0
// means no limit.
func (s *Store) ListPartitions(ctx context.Context, stage string, limit int) ([]*PartitionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, stage, task_id, task_count, total_items,
		success, not_found, failed, timeout, skipped, error, failure_rate, breached, summary_path, start_time, end_time
		FROM partitions WHERE stage = ? ORDER BY id DESC LIMIT ?`, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer rows.Close()

	var records []*PartitionRecord
	for rows.Next() {
		p := &PartitionRecord{}
		var path sql.NullString
		st := &p.Statistics
		if err := rows.Scan(&p.ID, &p.RunID, &p.Stage, &p.TaskID, &p.TaskCount, &p.TotalItems,
			&st.Success, &st.NotFound, &st.Failed, &st.Timeout, &st.Skipped, &st.Error,
			&p.FailureRate, &p.Breached, &path, &p.StartTime, &p.EndTime); err != nil {
			return nil, fmt.Errorf("scan partition row: %w", err)
		}
		p.SummaryPath = path.String
		records = append(records, p)
	}
	return records, rows.Err()
}

// LatestMerge returns the most recent merge for stage, or nil if none was recorded.
func (s *Store) LatestMerge(ctx context.Context, stage string) (*MergeRecord, error) {
	m := &MergeRecord{}
	var path sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, stage, tasks, total_items, releases, complete, partial, absent,
		skipped_summaries, report_path, recorded_at
		FROM merges WHERE stage = ? ORDER BY id DESC LIMIT 1`, stage).Scan(
		&m.ID, &m.Stage, &m.Tasks, &m.TotalItems, &m.Releases, &m.Complete, &m.Partial, &m.Absent,
		&m.Skipped, &path, &m.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest merge: %w", err)
	}
	m.ReportPath = path.String
	return m, nil
}

// ItemHistory returns every recorded outcome for an organism/release pair,
// oldest first.
func (s *Store) ItemHistory(ctx context.Context, organism string, release int) ([]*ItemOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT o.partition_id, p.run_id, o.item_key, o.organism, o.release_num,
		o.status, o.detail, o.duration_ms
		FROM item_outcomes o JOIN partitions p ON p.id = o.partition_id
		WHERE o.organism = ? AND o.release_num = ?
		ORDER BY o.id ASC`, organism, release)
	if err != nil {
		return nil, fmt.Errorf("query item history: %w", err)
	}
	defer rows.Close()

	var outcomes []*ItemOutcome
	for rows.Next() {
		o := &ItemOutcome{}
		var status string
		var detail sql.NullString
		var ms int64
		if err := rows.Scan(&o.PartitionID, &o.RunID, &o.ItemKey, &o.Organism, &o.Release,
			&status, &detail, &ms); err != nil {
			return nil, fmt.Errorf("scan item outcome: %w", err)
		}
		o.Status = models.Status(status)
		o.Detail = detail.String
		o.Duration = time.Duration(ms) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Prune deletes partitions (and their item outcomes) and merges recorded before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM item_outcomes WHERE partition_id IN
		(SELECT id FROM partitions WHERE recorded_at < ?)`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("prune item outcomes: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM partitions WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune partitions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM merges WHERE recorded_at < ?`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("prune merges: %w", err)
	}
	return res.RowsAffected()
}
