package usecase

import "errors"

// Sentinel errors for the use case layer.
var (
	// Validation errors
	ErrCategoryRequired     = errors.New("category is required")
	ErrNoChecklistsSelected = errors.New("no checklists selected")
	ErrUnknownChecklist     = errors.New("selected checklist not found on card")
	ErrUnknownProject       = errors.New("project not found")

	// ErrUserNotMapped means the acting board user has no tracking account.
	ErrUserNotMapped = errors.New("board user is not mapped to a tracking account")

	// ErrDeliveryFailed means the gateway did not accept the call after all retries.
	ErrDeliveryFailed = errors.New("webhook delivery failed")
)

// UserNotMappedMessage is shown to users who cannot be resolved.
const UserNotMappedMessage = "Harvest is not configured for your account. Please contact your administrator."

// IsValidation reports whether err is caused by invalid user input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrCategoryRequired) ||
		errors.Is(err, ErrNoChecklistsSelected) ||
		errors.Is(err, ErrUnknownChecklist) ||
		errors.Is(err, ErrUnknownProject)
}
