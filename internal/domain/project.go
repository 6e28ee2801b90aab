package domain

// TrackingProject represents an active billable project in the time-tracking system.
type TrackingProject struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Code   string   `json:"code,omitempty"`
	Client NamedRef `json:"client"`
}

// TrackingTask represents an active task type in the time-tracking system.
type TrackingTask struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrackingAccount is one user record of the time-tracking system.
type TrackingAccount struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName joins first and last name.
func (a TrackingAccount) DisplayName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// NamedRef is an {id, name} reference embedded in tracking records.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}
