package appointment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MeetingLinkProvider issues the online meeting link handed out at check-in.
type MeetingLinkProvider interface {
	MeetingLink(ctx context.Context, appt *Appointment) (string, error)
}

// RoomLinkProvider derives a stable room URL per appointment under BaseURL.
type RoomLinkProvider struct {
	BaseURL string
}

func (p RoomLinkProvider) MeetingLink(_ context.Context, appt *Appointment) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("meeting base url is not configured")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid meeting base url %q", p.BaseURL)
	}
	return base + "/prevention-" + appt.ID.String(), nil
}
