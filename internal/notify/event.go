package notify

import "time"

// Kind identifies the type of engagement event.
type Kind string

const (
	KindOpened  Kind = "opened"
	KindClicked Kind = "clicked"
)

// Event is the normalized engagement record forwarded downstream.
// RecipientEmail is set for opens, TargetURL for clicks. OccurredAt is the
// request-receipt time, not the send time.
type Event struct {
	EventID        string
	Kind           Kind
	QueueID        string
	CampaignID     string
	RecipientEmail string
	TargetURL      string
	OccurredAt     time.Time
	UserAgent      string
	IPAddress      string
}
