package models

// Request inputs. Limits are enforced with validator tags in the service.

type CreateCardInput struct {
	Front    string `json:"front" yaml:"front" validate:"required,max=2000"`
	Back     string `json:"back" yaml:"back" validate:"required,max=2000"`
	DeckName string `json:"deck_name" yaml:"deck" validate:"max=100"`
}

// UpdateCardInput changes only the fields that are set.
type UpdateCardInput struct {
	Front    *string `json:"front" validate:"omitempty,min=1,max=2000"`
	Back     *string `json:"back" validate:"omitempty,min=1,max=2000"`
	DeckName *string `json:"deck_name" validate:"omitempty,max=100"`
}

// ReviewInput grades a card. Quality is a pointer so that a missing grade is
// rejected rather than read as 0.
type ReviewInput struct {
	Quality      *int    `json:"quality" validate:"required,min=0,max=5"`
	ResponseTime float64 `json:"response_time" validate:"min=0"`
}

type StartSessionInput struct {
	DeckName    *string `json:"deck_name" validate:"omitempty,max=100"`
	SessionType string  `json:"session_type" validate:"omitempty,oneof=review new mixed"`
	MaxCards    int     `json:"max_cards" validate:"min=0"`
}

type SessionReviewInput struct {
	CardID       int64   `json:"card_id" validate:"required"`
	Quality      *int    `json:"quality" validate:"required,min=0,max=5"`
	ResponseTime float64 `json:"response_time" validate:"min=0"`
}

type ReminderInput struct {
	Time      string   `json:"time" validate:"required"`
	Enabled   *bool    `json:"enabled"`
	DeckNames []string `json:"deck_names" validate:"dive,max=100"`
}
