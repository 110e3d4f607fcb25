package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"texthelper/internal/domain"
)

func (d *Database) AppendMessage(ctx context.Context, chatID int64, text string, isUser bool) error {
	if text == "" {
		return errors.New("message text is empty")
	}

	query := "insert into messages (chat_id, text, is_user, created_at) values (?, ?, ?, ?)"

	_, err := d.db.ExecContext(ctx, query, chatID, text, isUser, d.now().UnixMilli())

	return err
}

// ListMessages returns up to limit most recent messages in chronological
// order. A non-positive limit returns the whole history.
func (d *Database) ListMessages(ctx context.Context, chatID int64, limit int) ([]domain.Message, error) {
	query := `select id, text, is_user, created_at from (
		select id, text, is_user, created_at
		from messages
		where chat_id = ?
		order by id desc
		limit ?
	) order by id asc`

	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"chatID", chatID,
				"operation", "ListMessages")
		}
	}()

	var messages []domain.Message
	for rows.Next() {
		var (
			m         domain.Message
			createdAt int64
		)
		if err = rows.Scan(&m.ID, &m.Text, &m.IsUser, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.ChatID = chatID
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return messages, nil
}

func (d *Database) ClearMessages(ctx context.Context, chatID int64) error {
	query := "delete from messages where chat_id = ?"

	_, err := d.db.ExecContext(ctx, query, chatID)

	return err
}

// PruneMessages deletes messages created before cutoff and reports how many
// were removed.
func (d *Database) PruneMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "delete from messages where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
