package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/pkg/utils"
)

func (r *DB) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	decks := reminder.DeckNames
	if decks == nil {
		decks = []string{}
	}

	raw, err := json.Marshal(decks)
	if err != nil {
		return fmt.Errorf("encode reminder decks (time: %s): %w", reminder.Time, err)
	}
	reminder.DecksJSON = string(raw)

	query := r.sb.Insert("study_reminders").
		Columns("remind_at", "enabled", "deck_names", "created_at").
		Values(reminder.Time, reminder.Enabled, reminder.DecksJSON, utils.DBTime(reminder.CreatedAt))

	id, err := r.insertReturningID(ctx, query)
	if err != nil {
		return fmt.Errorf("create reminder (time: %s): %w", reminder.Time, err)
	}

	reminder.ID = id
	reminder.DeckNames = decks
	return nil
}

func (r *DB) ListReminders(ctx context.Context) ([]*models.Reminder, error) {
	sqlStr, args, err := r.sb.Select("id", "remind_at", "enabled", "deck_names", "created_at").
		From("study_reminders").
		OrderBy("remind_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	reminders := make([]*models.Reminder, 0)
	if err := r.SelectContext(ctx, &reminders, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	for _, reminder := range reminders {
		reminder.DeckNames = []string{}
		if reminder.DecksJSON == "" {
			continue
		}
		if err := json.Unmarshal([]byte(reminder.DecksJSON), &reminder.DeckNames); err != nil {
			return nil, fmt.Errorf("decode reminder decks (id: %d): %w", reminder.ID, err)
		}
	}
	return reminders, nil
}
