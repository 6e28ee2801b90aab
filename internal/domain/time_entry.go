package domain

// ActiveTimerRecord represents a currently running time entry. It is fetched
// fresh on every check and never cached.
type ActiveTimerRecord struct {
	Project *NamedRef `json:"project,omitempty"`
	Client  *NamedRef `json:"client,omitempty"`
	Task    *NamedRef `json:"task,omitempty"`
	User    *NamedRef `json:"user,omitempty"`
	Notes   string    `json:"notes"`
}

// ProjectName returns the project name or "" when the record has none.
func (r ActiveTimerRecord) ProjectName() string {
	if r.Project == nil {
		return ""
	}
	return r.Project.Name
}

// ClientName returns the client name or "" when the record has none.
func (r ActiveTimerRecord) ClientName() string {
	if r.Client == nil {
		return ""
	}
	return r.Client.Name
}

// TaskName returns the task name or "" when the record has none.
func (r ActiveTimerRecord) TaskName() string {
	if r.Task == nil {
		return ""
	}
	return r.Task.Name
}

// TimerStatus is the outcome of a running-timer check.
type TimerStatus int

const (
	// TimerNone means no matching timer or the card could not be checked.
	TimerNone TimerStatus = iota
	// TimerRunningForUser means a match was found with a user-scoped query.
	TimerRunningForUser
	// TimerRunningTeamwide means a match was found with a board-wide query.
	TimerRunningTeamwide
)

func (s TimerStatus) String() string {
	switch s {
	case TimerRunningForUser:
		return "RUNNING_FOR_USER"
	case TimerRunningTeamwide:
		return "RUNNING_TEAMWIDE"
	default:
		return "NONE"
	}
}

// Running reports whether the status represents a matched timer.
func (s TimerStatus) Running() bool {
	return s != TimerNone
}

func (s TimerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Badge is the card badge rendered by the board host.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// RunningBadge is shown on a card whose client and project match a running timer.
var RunningBadge = Badge{Text: "⏱️ Timer Running", Color: "green"}
