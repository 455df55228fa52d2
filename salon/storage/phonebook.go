package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const savePhoneQuery = `
INSERT INTO clients (chat_id, username, phone, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (chat_id) DO UPDATE
SET username = EXCLUDED.username, phone = EXCLUDED.phone, updated_at = now()`

// SavePhone stores the phone number shared by a client.
func (r *Repository) SavePhone(ctx context.Context, chatID int64, username, phone string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, savePhoneQuery, chatID, username, phone)
	r.logQuery(ctx, "save_phone", start, err, slog.Int64("chat_id", chatID))
	if err != nil {
		return fmt.Errorf("save phone: %w", err)
	}
	return nil
}

const phoneQuery = `SELECT phone FROM clients WHERE chat_id = $1`

// Phone returns the stored phone of a client, if any.
func (r *Repository) Phone(ctx context.Context, chatID int64) (string, bool, error) {
	start := time.Now()
	var phone string
	err := r.db.GetContext(ctx, &phone, phoneQuery, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		r.logQuery(ctx, "phone", start, nil, slog.Bool("found", false))
		return "", false, nil
	}
	r.logQuery(ctx, "phone", start, err, slog.Bool("found", err == nil))
	if err != nil {
		return "", false, fmt.Errorf("phone lookup: %w", err)
	}
	return phone, true, nil
}
