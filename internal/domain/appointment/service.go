package appointment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Settings are the tunables of the lifecycle engine.
type Settings struct {
	CheckIn        CheckInWindow
	ExpiryGrace    time.Duration
	SweepBatchSize int
	// SweepWorkers bounds concurrent updates within one batch.
	SweepWorkers int
}

func DefaultSettings() Settings {
	return Settings{
		CheckIn:        DefaultCheckInWindow,
		ExpiryGrace:    DefaultExpiryGrace,
		SweepBatchSize: 50,
		SweepWorkers:   4,
	}
}

type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	links        MeetingLinkProvider
	settings     Settings
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(sched ScheduleRepository, appt AppointmentRepository, links MeetingLinkProvider, settings Settings, logger zerolog.Logger) *Service {
	if settings.SweepBatchSize <= 0 {
		settings.SweepBatchSize = DefaultSettings().SweepBatchSize
	}
	if settings.SweepWorkers <= 0 {
		settings.SweepWorkers = 1
	}
	return &Service{
		schedules:    sched,
		appointments: appt,
		links:        links,
		settings:     settings,
		logger:       logger.With().Str("component", "appointment").Logger(),
		now:          time.Now,
	}
}

// -- Schedule --

func (s *Service) CreateSchedule(ctx context.Context, sched *Schedule) error {
	if sched.ConsultantID == "" {
		return fmt.Errorf("consultant_id is required")
	}
	if sched.StartTime.IsZero() || sched.EndTime.IsZero() {
		return fmt.Errorf("start_time and end_time are required")
	}
	if !sched.EndTime.After(sched.StartTime) {
		return fmt.Errorf("end_time must be after start_time")
	}
	return s.schedules.Create(ctx, sched)
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context, consultantID string, limit, offset int) ([]*Schedule, int, error) {
	return s.schedules.ListByConsultant(ctx, consultantID, limit, offset)
}

// -- Appointment --

// Book reserves a schedule slot for an account. The consultant and date are
// taken from the schedule.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if a.ScheduleID == uuid.Nil {
		return fmt.Errorf("schedule_id is required")
	}
	sched, err := s.schedules.GetByID(ctx, a.ScheduleID)
	if err != nil {
		return err
	}
	if !sched.EndTime.After(s.now()) {
		return ErrSlotUnavailable
	}
	start := sched.StartTime.UTC()
	a.ConsultantID = sched.ConsultantID
	a.AppointmentDate = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	a.Status = StatusBooked
	a.CheckedIn = false
	a.MeetingLink = ""
	return s.appointments.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return s.appointments.Search(ctx, f, limit, offset)
}

// UpdateStatus applies a status transition. The write is conditional on the
// status read before it and the returned appointment is re-read afterwards.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Appointment, error) {
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(cur.Status, newStatus); err != nil {
		return nil, err
	}
	if cur.Status == newStatus {
		return cur, nil
	}

	changed, err := s.appointments.UpdateStatus(ctx, id, cur.Status, newStatus)
	if err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	fresh, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if fresh.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fresh.Status, newStatus)
		}
		return nil, ErrConflict
	}
	return fresh, nil
}

// CheckIn marks a booked appointment as checked in and attaches a meeting
// link. It is only allowed from OpensBefore ahead of the slot start until
// ClosesAfter past it.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusBooked {
		return nil, fmt.Errorf("%w: cannot check in a %s appointment", ErrInvalidTransition, appt.Status)
	}
	if appt.CheckedIn {
		return nil, ErrAlreadyCheckedIn
	}
	sched, err := s.schedules.GetByID(ctx, appt.ScheduleID)
	if err != nil {
		return nil, err
	}
	if !s.settings.CheckIn.Contains(sched.StartTime, s.now()) {
		return nil, ErrCheckInWindowClosed
	}

	link, err := s.links.MeetingLink(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMeetingLink, err)
	}
	changed, err := s.appointments.MarkCheckedIn(ctx, id, link)
	if err != nil {
		return nil, fmt.Errorf("check in appointment %s: %w", id, err)
	}
	fresh, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		switch {
		case fresh.Status != StatusBooked:
			return nil, fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, fresh.Status)
		case fresh.CheckedIn:
			return nil, ErrAlreadyCheckedIn
		default:
			return nil, ErrConflict
		}
	}
	return fresh, nil
}

// -- Expiry --

// ExpireStale cancels BOOKED appointments nobody checked in to whose slot
// ended more than the expiry grace ago. Cancellations are conditional on the
// appointment still being unattended and run in batches; failures are logged
// per batch and the sweep moves on.
func (s *Service) ExpireStale(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{StartedAt: now.UTC()}
	defer func() { report.Duration = s.now().Sub(now) }()

	candidates, err := s.appointments.ListUnattended(ctx, now.Add(-s.settings.ExpiryGrace))
	if err != nil {
		return report, fmt.Errorf("list booked appointments: %w", err)
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	seen := make(map[uuid.UUID]bool, len(candidates))
	var ids []uuid.UUID
	for _, a := range candidates {
		if !seen[a.ScheduleID] {
			seen[a.ScheduleID] = true
			ids = append(ids, a.ScheduleID)
		}
	}
	schedules, err := s.schedules.ListByIDs(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("load schedules: %w", err)
	}

	expired := ExpiredAppointments(candidates, schedules, now, s.settings.ExpiryGrace)
	report.Expired = len(expired)

	size := s.settings.SweepBatchSize
	for start := 0; start < len(expired); start += size {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := start + size
		if end > len(expired) {
			end = len(expired)
		}
		report.Batches++
		s.expireBatch(ctx, report.Batches, expired[start:end], report)
	}
	return report, nil
}

func (s *Service) expireBatch(ctx context.Context, batch int, appts []*Appointment, report *SweepReport) {
	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)
	var g errgroup.Group
	g.SetLimit(s.settings.SweepWorkers)
	for _, a := range appts {
		a := a
		g.Go(func() error {
			changed, err := s.appointments.CancelUnattended(ctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && changed:
				report.Cancelled++
			case err == nil:
				// checked in, consulted or cancelled since it was listed
				report.Skipped++
			default:
				failed++
				lastErr = err
				s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Int("batch", batch).Msg("expire appointment")
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Failed += failed
	if failed > 0 {
		s.logger.Error().Err(lastErr).Int("batch", batch).Int("failed", failed).Int("size", len(appts)).Msg("expiry batch had failures")
		return
	}
	s.logger.Debug().Int("batch", batch).Int("size", len(appts)).Msg("expiry batch done")
}
