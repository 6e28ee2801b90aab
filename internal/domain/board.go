package domain

import "encoding/json"

// BoardUser is the acting board member. Email may be withheld by the host
// depending on granted permissions.
type BoardUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Initials  string `json:"initials,omitempty"`
}

// Label is a card label. The first label of a card names its client.
type Label struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Attachment is a card attachment. Attachments linking to another card mark
// the card as a child.
type Attachment struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// CheckItem is one item of a checklist.
type CheckItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// Checklist is a named list of check items on a card.
type Checklist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CheckItems []CheckItem `json:"checkItems"`
}

// Card is the snapshot of the acting card as read by the host SDK.
type Card struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Desc             string            `json:"desc"`
	IDBoard          string            `json:"idBoard"`
	IDList           string            `json:"idList"`
	Labels           []Label           `json:"labels"`
	Members          []BoardUser       `json:"members"`
	Due              *string           `json:"due"`
	DueComplete      bool              `json:"dueComplete"`
	Attachments      []Attachment      `json:"attachments"`
	URL              string            `json:"url"`
	ShortURL         string            `json:"shortUrl"`
	Badges           json.RawMessage   `json:"badges,omitempty"`
	CustomFieldItems []json.RawMessage `json:"customFieldItems"`
	Checklists       []Checklist       `json:"checklists,omitempty"`
}

// ClientLabel returns the name of the first label, or "" when the card has none.
func (c Card) ClientLabel() string {
	if len(c.Labels) == 0 {
		return ""
	}
	return c.Labels[0].Name
}

// Board is the board the card lives on.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List is the list the card lives in.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParentLinkage is derived from a child card's attachments on every call.
type ParentLinkage struct {
	AttachmentURL string
	DerivedName   string
}

// CardIdentity is the identity used to match timers against a card.
type CardIdentity struct {
	EffectiveName string
	IsChild       bool
	// Parent is set whenever a card-link attachment exists, even if its
	// name could not be derived (IsChild is false in that case).
	Parent *ParentLinkage
}
