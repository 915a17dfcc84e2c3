package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stats aggregates a doctor's appointment counts for the dashboard.
type Stats struct {
	DoctorID   string `json:"doctorId"`
	Total      int64  `json:"total"`
	Pending    int64  `json:"pending"`
	Confirmed  int64  `json:"confirmed"`
	InProgress int64  `json:"inProgress"`
	Completed  int64  `json:"completed"`
	Cancelled  int64  `json:"cancelled"`
	NoShow     int64  `json:"noShow"`
	Today      int64  `json:"today"`
}

// statsDB defines the database interface needed by StatsRepository.
type statsDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries appointment metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("schedule: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats returns per-status counts for the doctor plus the count of
// appointments starting inside [todayFrom, todayTo).
func (r *StatsRepository) GetStats(ctx context.Context, doctorID string, todayFrom, todayTo time.Time) (*Stats, error) {
	stats := &Stats{DoctorID: doctorID}

	statusQuery := `SELECT status, COUNT(*) FROM appointments WHERE doctor_id = $1 GROUP BY status`
	rows, err := r.db.Query(ctx, statusQuery, doctorID)
	if err != nil {
		return nil, fmt.Errorf("schedule stats: count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("schedule stats: scan status count: %w", err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusConfirmed:
			stats.Confirmed = count
		case StatusInProgress:
			stats.InProgress = count
		case StatusCompleted:
			stats.Completed = count
		case StatusCancelled:
			stats.Cancelled = count
		case StatusNoShow:
			stats.NoShow = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule stats: iterate status counts: %w", err)
	}

	todayQuery := `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND start_at >= $2 AND start_at < $3`
	if err := r.db.QueryRow(ctx, todayQuery, doctorID, todayFrom, todayTo).Scan(&stats.Today); err != nil {
		return nil, fmt.Errorf("schedule stats: count today: %w", err)
	}

	return stats, nil
}
