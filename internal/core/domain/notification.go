package domain

import "time"

// Audience names who a notification is for.
type Audience string

const (
	AudienceUsers      Audience = "users"
	AudienceCustomers  Audience = "customers"
	AudienceInternal   Audience = "internal"
	AudienceLeadership Audience = "leadership"
	AudienceOncall     Audience = "oncall"
	AudiencePublic     Audience = "public"
)

// AudienceSLAMinutes fixes the notification SLA per audience. Callers compare
// SentAt against the triggering event to detect breaches.
var AudienceSLAMinutes = map[Audience]int{
	AudienceOncall:     5,
	AudienceInternal:   15,
	AudienceLeadership: 30,
	AudienceCustomers:  60,
	AudienceUsers:      60,
	AudiencePublic:     120,
}

// Channel names the transport a notification goes out on.
type Channel string

const (
	ChannelPager      Channel = "pager"
	ChannelStatusPage Channel = "status_page"
	ChannelEmail      Channel = "email"
	ChannelChat       Channel = "chat"
)

// Notification is an immutable record destined for the paging transport.
type Notification struct {
	Audience Audience  `json:"audience"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Channel  Channel   `json:"channel"`
	SentAt   time.Time `json:"sent_at"`
}
