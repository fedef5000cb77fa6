package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusConsulted Status = "CONSULTED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusConsulted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusConsulted || s == StatusCancelled
}

// Schedule is a consultant's bookable time slot.
type Schedule struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ConsultantID string    `db:"consultant_id" json:"consultantId"`
	StartTime    time.Time `db:"start_time" json:"startTime"`
	EndTime      time.Time `db:"end_time" json:"endTime"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Appointment is a booking of one schedule slot by an account. Appointments
// are never deleted; cancelled ones stay as history.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Status          Status    `db:"status" json:"status"`
	ScheduleID      uuid.UUID `db:"schedule_id" json:"scheduleId"`
	ConsultantID    string    `db:"consultant_id" json:"consultantId"`
	AccountID       string    `db:"account_id" json:"accountId"`
	Description     string    `db:"description" json:"description"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointmentDate"`
	CheckedIn       bool      `db:"checked_in" json:"checkedIn"`
	MeetingLink     string    `db:"meeting_link" json:"meetingLink,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Filter narrows appointment listings. Empty fields match everything.
type Filter struct {
	AccountID    string
	ConsultantID string
	Status       Status
}

// SweepReport summarizes one expiry run.
type SweepReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Expired    int           `json:"expired"`
	Cancelled  int           `json:"cancelled"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Batches    int           `json:"batches"`
}
