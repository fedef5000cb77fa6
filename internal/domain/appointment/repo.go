package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Schedule, error)
	ListByConsultant(ctx context.Context, consultantID string, limit, offset int) ([]*Schedule, int, error)
}

type AppointmentRepository interface {
	// Create returns ErrSlotTaken when the schedule already has a live booking.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// UpdateStatus moves the appointment to to only while its status is
	// still from, and reports whether a row changed. A terminal target
	// clears the meeting link.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	// MarkCheckedIn stores the meeting link and sets checked_in only while
	// the appointment is BOOKED and not yet checked in.
	MarkCheckedIn(ctx context.Context, id uuid.UUID, meetingLink string) (bool, error)
	// CancelUnattended cancels the appointment only while it is BOOKED and
	// not checked in, and reports whether a row changed.
	CancelUnattended(ctx context.Context, id uuid.UUID) (bool, error)
	// ListUnattended returns BOOKED, not checked-in appointments whose slot
	// ended before endedBefore.
	ListUnattended(ctx context.Context, endedBefore time.Time) ([]*Appointment, error)
}
