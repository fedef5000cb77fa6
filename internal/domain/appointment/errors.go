package appointment

import "errors"

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrScheduleNotFound = errors.New("schedule not found")

	ErrInvalidStatus       = errors.New("invalid appointment status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrCheckInWindowClosed = errors.New("check-in window is closed")
	ErrAlreadyCheckedIn    = errors.New("appointment already checked in")
	ErrSlotTaken           = errors.New("schedule slot already booked")
	ErrSlotUnavailable     = errors.New("schedule slot has already ended")
	ErrConflict            = errors.New("appointment was modified concurrently")
	ErrMeetingLink         = errors.New("meeting link unavailable")
)
