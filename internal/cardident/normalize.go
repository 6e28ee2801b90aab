// Package cardident derives the identity a card is matched by. A card that
// links to another card is a child and takes its name from the parent link.
package cardident

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"timer-powerup/internal/domain"
)

// DefaultLinkPattern identifies attachment URLs that point at another card.
const DefaultLinkPattern = "trello.com/c/"

// Card URLs look like https://trello.com/c/<shortLink>/<position>-<name-slug>.
var positionPrefix = regexp.MustCompile(`^\d+-`)

// Normalizer computes card identities. It holds no state between calls.
type Normalizer struct {
	LinkPattern string
}

// New returns a normalizer for the given card-link pattern.
func New(linkPattern string) Normalizer {
	if linkPattern == "" {
		linkPattern = DefaultLinkPattern
	}
	return Normalizer{LinkPattern: linkPattern}
}

// ParentAttachment returns the first attachment linking to another card.
func (n Normalizer) ParentAttachment(card domain.Card) (domain.Attachment, bool) {
	pattern := n.LinkPattern
	if pattern == "" {
		pattern = DefaultLinkPattern
	}
	for _, a := range card.Attachments {
		if a.URL != "" && strings.Contains(a.URL, pattern) {
			return a, true
		}
	}
	return domain.Attachment{}, false
}

// Normalize returns the effective name of card. When the parent name cannot
// be derived the card is treated as standalone under its own name.
func (n Normalizer) Normalize(card domain.Card) domain.CardIdentity {
	parent, ok := n.ParentAttachment(card)
	if !ok {
		return domain.CardIdentity{EffectiveName: card.Name}
	}

	name, ok := ParentNameFromURL(parent.URL)
	if !ok {
		return domain.CardIdentity{
			EffectiveName: card.Name,
			Parent:        &domain.ParentLinkage{AttachmentURL: parent.URL},
		}
	}
	return domain.CardIdentity{
		EffectiveName: name,
		IsChild:       true,
		Parent:        &domain.ParentLinkage{AttachmentURL: parent.URL, DerivedName: name},
	}
}

// ParentNameFromURL turns ".../c/abc123/659-esa-campaign" into "Esa Campaign".
func ParentNameFromURL(rawURL string) (string, bool) {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	slug := rawURL
	if i := strings.LastIndexByte(rawURL, '/'); i >= 0 {
		slug = rawURL[i+1:]
	}
	if slug == "" {
		return "", false
	}
	slug = positionPrefix.ReplaceAllString(slug, "")

	var words []string
	for _, w := range strings.Split(slug, "-") {
		if w == "" {
			continue
		}
		words = append(words, titleWord(w))
	}
	if len(words) == 0 {
		return "", false
	}
	return strings.Join(words, " "), true
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
