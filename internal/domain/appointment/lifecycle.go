package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// transitions lists the allowed target statuses per source status.
// BOOKED -> BOOKED is the check-in step, which leaves the status alone.
var transitions = map[Status][]Status{
	StatusBooked: {StatusBooked, StatusConsulted, StatusCancelled},
}

// CanTransition returns ErrInvalidTransition unless from may move to to.
func CanTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CheckInWindow bounds check-in around the slot start. Both ends are inclusive.
type CheckInWindow struct {
	OpensBefore time.Duration
	ClosesAfter time.Duration
}

var DefaultCheckInWindow = CheckInWindow{OpensBefore: 15 * time.Minute, ClosesAfter: 60 * time.Minute}

// Contains reports whether now falls within the window of a slot starting at
// slotStart.
func (w CheckInWindow) Contains(slotStart, now time.Time) bool {
	opens := slotStart.Add(-w.OpensBefore)
	closes := slotStart.Add(w.ClosesAfter)
	return !now.Before(opens) && !now.After(closes)
}

// DefaultExpiryGrace is how long after its slot ends an untouched booking
// stays BOOKED.
const DefaultExpiryGrace = 15 * time.Minute

// ExpiredAppointments selects the BOOKED, not checked-in appointments whose
// slot ended more than grace before now. Appointments whose schedule is not in schedules are
// left alone. It does not modify its inputs.
func ExpiredAppointments(appts []*Appointment, schedules []*Schedule, now time.Time, grace time.Duration) []*Appointment {
	byID := make(map[uuid.UUID]*Schedule, len(schedules))
	for _, s := range schedules {
		byID[s.ID] = s
	}
	var out []*Appointment
	for _, a := range appts {
		if a.Status != StatusBooked || a.CheckedIn {
			continue
		}
		s, ok := byID[a.ScheduleID]
		if !ok {
			continue
		}
		if s.EndTime.Add(grace).Before(now) {
			out = append(out, a)
		}
	}
	return out
}
