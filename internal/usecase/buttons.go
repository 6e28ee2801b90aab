package usecase

import (
	"context"

	"timer-powerup/internal/domain"
)

// Button actions understood by the client frame.
const (
	ButtonActionStartPopup   = "popup:start-timer"
	ButtonActionStop         = "stop-timer"
	ButtonActionConvertPopup = "popup:convert-checklists"
	ButtonActionAlert        = "alert"
)

const timerAlreadyRunningMessage = "You already have a timer running for this project. Stop it before starting a new one."

// Button describes one card button.
type Button struct {
	Text    string `json:"text"`
	Icon    string `json:"icon"`
	Action  string `json:"action"`
	Enabled bool   `json:"enabled"`
	// Message and Display are set for alert buttons.
	Message string `json:"message,omitempty"`
	Display string `json:"display,omitempty"`
}

// Buttons returns the start, stop and convert buttons for card. The start
// button turns into a warning while a matching timer runs.
func (uc *TimerCheck) Buttons(ctx context.Context, card domain.Card, user *domain.BoardUser) []Button {
	start := Button{
		Text:    "Start Harvest Timer",
		Icon:    "./start-timer.svg",
		Action:  ButtonActionStartPopup,
		Enabled: true,
	}
	if uc.Check(ctx, card, card.ClientLabel(), user).Running() {
		start = Button{
			Text:    "⏱️ Timer Already Running",
			Icon:    "./start-timer.svg",
			Action:  ButtonActionAlert,
			Message: timerAlreadyRunningMessage,
			Display: "warning",
		}
	}
	return []Button{
		start,
		{Text: "Stop Harvest Timer", Icon: "./stop-timer.svg", Action: ButtonActionStop, Enabled: true},
		{Text: "Convert Checklist Items to Cards", Icon: "./create-child-cards.svg", Action: ButtonActionConvertPopup, Enabled: true},
	}
}
