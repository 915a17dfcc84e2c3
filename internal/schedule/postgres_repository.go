package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// newPostgresRepositoryWithQuerier allows injecting mocks for tests.
func newPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, doctor_id, patient_id, start_at, duration_minutes, type, status, reason, notes, cancellation_reason, meeting_link, created_at, updated_at`

// Insert persists a new appointment row.
func (r *PostgresRepository) Insert(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (id, doctor_id, patient_id, start_at, duration_minutes, type, status, reason, notes, cancellation_reason, meeting_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.DoctorID,
		appt.PatientID,
		appt.Interval.Start,
		appt.Interval.DurationMinutes,
		string(appt.Type),
		string(appt.Status),
		appt.Reason,
		appt.Notes,
		nullable(appt.CancellationReason),
		nullable(appt.MeetingLink),
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("schedule: insert appointment: %w", err)
	}
	return nil
}

// Get loads a single appointment by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("schedule: select appointment: %w", err)
	}
	return appt, nil
}

// Update rewrites the mutable columns of an appointment.
func (r *PostgresRepository) Update(ctx context.Context, appt *Appointment) error {
	query := `
		UPDATE appointments
		SET start_at = $2, duration_minutes = $3, status = $4, notes = $5, cancellation_reason = $6, meeting_link = $7, updated_at = $8
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.Interval.Start,
		appt.Interval.DurationMinutes,
		string(appt.Status),
		appt.Notes,
		nullable(appt.CancellationReason),
		nullable(appt.MeetingLink),
		appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("schedule: update appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindConflicts returns the doctor's slot-occupying appointments overlapping
// the interval, half-open semantics, excluding excludeID when set.
func (r *PostgresRepository) FindConflicts(ctx context.Context, doctorID string, interval Interval, excludeID string) ([]ConflictSummary, error) {
	query := `
		SELECT id, status, start_at, duration_minutes
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $4
		  AND (NULLIF($5, '') IS NULL OR id::text <> $5)
		ORDER BY start_at ASC
	`
	rows, err := r.db.Query(ctx, query, doctorID, occupiedStatuses, interval.End(), interval.Start, excludeID)
	if err != nil {
		return nil, fmt.Errorf("schedule: query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []ConflictSummary
	for rows.Next() {
		var (
			c        ConflictSummary
			status   string
			start    time.Time
			duration int
		)
		if err := rows.Scan(&c.ID, &status, &start, &duration); err != nil {
			return nil, fmt.Errorf("schedule: scan conflict: %w", err)
		}
		c.Status = Status(status)
		c.Interval = NewInterval(start, duration)
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: iterate conflicts: %w", err)
	}
	return conflicts, nil
}

// List returns filtered appointments sorted by start ascending plus the total
// match count before pagination.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, int, error) {
	where, args := buildListWhere(filter)

	countQuery := `SELECT COUNT(*) FROM appointments` + where
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("schedule: count appointments: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+appointmentColumns+` FROM appointments%s ORDER BY start_at ASC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("schedule: list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("schedule: scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("schedule: iterate appointments: %w", err)
	}
	return appts, total, nil
}

func buildListWhere(filter ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.DoctorID != "" {
		add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("start_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_at < $%d", filter.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		appt               Appointment
		start              time.Time
		duration           int
		apptType, status   string
		cancellationReason *string
		meetingLink        *string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.DoctorID,
		&appt.PatientID,
		&start,
		&duration,
		&apptType,
		&status,
		&appt.Reason,
		&appt.Notes,
		&cancellationReason,
		&meetingLink,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Interval = NewInterval(start, duration)
	appt.Type = AppointmentType(apptType)
	appt.Status = Status(status)
	if cancellationReason != nil {
		appt.CancellationReason = *cancellationReason
	}
	if meetingLink != nil {
		appt.MeetingLink = *meetingLink
	}
	return &appt, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
