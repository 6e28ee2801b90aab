package domain

// WebhookAction names one workflow triggered on the automation gateway.
type WebhookAction string

const (
	ActionStartTimer       WebhookAction = "start-timer"
	ActionStopTimer        WebhookAction = "stop-timer"
	ActionCreateChildCards WebhookAction = "create-child-cards"
)

// EnvelopeUser is the user block of a webhook envelope.
type EnvelopeUser struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	Username       string `json:"username"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	Initials       string `json:"initials,omitempty"`
	TrackingUserID string `json:"trackingUserId,omitempty"`
}

// EnvelopeChecklist is a checklist selected for conversion into child cards.
type EnvelopeChecklist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CheckItems []CheckItem `json:"checkItems"`
}

// Envelope is the JSON document posted to the gateway for every action.
type Envelope struct {
	Card       Card                `json:"card"`
	User       EnvelopeUser        `json:"user"`
	Category   string              `json:"category,omitempty"`
	Project    *TrackingProject    `json:"project,omitempty"`
	Checklists []EnvelopeChecklist `json:"checklists,omitempty"`
	Timestamp  string              `json:"timestamp"`
	BoardName  string              `json:"boardName"`
	ListName   string              `json:"listName"`
}

// DeliveryOutcome tags the result of a webhook call.
type DeliveryOutcome int

const (
	DeliveryExhausted DeliveryOutcome = iota
	DeliveryDelivered
)

func (o DeliveryOutcome) String() string {
	if o == DeliveryDelivered {
		return "delivered"
	}
	return "exhausted"
}

// DeliveryResult is returned by the gateway client instead of an error.
// Err holds the last failure when Outcome is DeliveryExhausted.
type DeliveryResult struct {
	Outcome    DeliveryOutcome
	Attempts   int
	StatusCode int
	RequestID  string
	Err        error
}

// Delivered reports whether the gateway accepted the call.
func (r DeliveryResult) Delivered() bool {
	return r.Outcome == DeliveryDelivered
}
