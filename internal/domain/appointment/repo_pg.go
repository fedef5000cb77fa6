package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

const schedCols = `id, consultant_id, start_time, end_time, created_at`

func (r *scheduleRepoPG) scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	if err := row.Scan(&s.ID, &s.ConsultantID, &s.StartTime, &s.EndTime, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO schedule (id, consultant_id, start_time, end_time)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		s.ID, s.ConsultantID, s.StartTime, s.EndTime).Scan(&s.CreatedAt)
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return r.scanSchedule(r.pool.QueryRow(ctx, `SELECT `+schedCols+` FROM schedule WHERE id = $1`, id))
}

func (r *scheduleRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Schedule, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+schedCols+` FROM schedule WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *scheduleRepoPG) ListByConsultant(ctx context.Context, consultantID string, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schedule WHERE consultant_id = $1`, consultantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+schedCols+` FROM schedule WHERE consultant_id = $1 ORDER BY start_time LIMIT $2 OFFSET $3`, consultantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, status, schedule_id, consultant_id, account_id, description,
	appointment_date, checked_in, meeting_link, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &status, &a.ScheduleID, &a.ConsultantID, &a.AccountID, &a.Description,
		&a.AppointmentDate, &a.CheckedIn, &a.MeetingLink, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointment (id, status, schedule_id, consultant_id, account_id, description,
			appointment_date, checked_in, meeting_link)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, string(a.Status), a.ScheduleID, a.ConsultantID, a.AccountID, a.Description,
		a.AppointmentDate, a.CheckedIn, a.MeetingLink).Scan(&a.CreatedAt, &a.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.AccountID != "" {
		query += fmt.Sprintf(` AND account_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND account_id = $%d`, idx)
		args = append(args, f.AccountID)
		idx++
	}
	if f.ConsultantID != "" {
		query += fmt.Sprintf(` AND consultant_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND consultant_id = $%d`, idx)
		args = append(args, f.ConsultantID)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment SET status = $3,
			meeting_link = CASE WHEN $4 THEN '' ELSE meeting_link END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), to.Terminal())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) MarkCheckedIn(ctx context.Context, id uuid.UUID, meetingLink string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment SET checked_in = TRUE, meeting_link = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'BOOKED' AND NOT checked_in`,
		id, meetingLink)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) CancelUnattended(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment SET status = 'CANCELLED', meeting_link = '', updated_at = NOW()
		WHERE id = $1 AND status = 'BOOKED' AND NOT checked_in`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) ListUnattended(ctx context.Context, endedBefore time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.status, a.schedule_id, a.consultant_id, a.account_id, a.description,
			a.appointment_date, a.checked_in, a.meeting_link, a.created_at, a.updated_at
		FROM appointment a JOIN schedule s ON s.id = a.schedule_id
		WHERE a.status = 'BOOKED' AND NOT a.checked_in AND s.end_time < $1
		ORDER BY s.end_time`, endedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
