package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"texthelper/internal/domain"
)

const maxSummaryIDAttempts = 1000

// SaveSummary stores a summary under an id derived from the current time.
// When the id is taken the next free one is used.
func (d *Database) SaveSummary(
	ctx context.Context,
	chatID int64,
	title string,
	content string,
) (int64, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if content == "" {
		return 0, errors.New("summary content is empty")
	}

	if title == "" {
		title = "Untitled"
	}

	query := "insert or ignore into summaries (id, chat_id, title, content) values (?, ?, ?, ?)"

	id := d.now().UnixMilli()
	for range maxSummaryIDAttempts {
		res, err := d.db.ExecContext(ctx, query, id, chatID, title, content)
		if err != nil {
			return 0, fmt.Errorf("failed to insert summary: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}

		if affected == 1 {
			return id, nil
		}

		id++
	}

	return 0, fmt.Errorf("no free summary id after %d attempts", maxSummaryIDAttempts)
}

func (d *Database) ListSummaries(ctx context.Context, chatID int64) ([]domain.SavedSummary, error) {
	query := "select id, title, content from summaries where chat_id = ? order by id asc"

	rows, err := d.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"chatID", chatID,
				"operation", "ListSummaries")
		}
	}()

	var summaries []domain.SavedSummary
	for rows.Next() {
		s := domain.SavedSummary{ChatID: chatID}
		if err = rows.Scan(&s.ID, &s.Title, &s.Content); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		summaries = append(summaries, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return summaries, nil
}

func (d *Database) GetSummary(ctx context.Context, chatID int64, id int64) (domain.SavedSummary, error) {
	query := "select title, content from summaries where chat_id = ? and id = ?"

	s := domain.SavedSummary{ID: id, ChatID: chatID}

	err := d.db.QueryRowContext(ctx, query, chatID, id).Scan(&s.Title, &s.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SavedSummary{}, ErrNotFound
	}
	if err != nil {
		return domain.SavedSummary{}, fmt.Errorf("failed to scan row: %w", err)
	}

	return s, nil
}

func (d *Database) DeleteSummary(ctx context.Context, chatID int64, id int64) error {
	query := "delete from summaries where chat_id = ? and id = ?"

	res, err := d.db.ExecContext(ctx, query, chatID, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (d *Database) DeleteAllSummaries(ctx context.Context, chatID int64) (int64, error) {
	query := "delete from summaries where chat_id = ?"

	res, err := d.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
