package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

type NotificationStore struct {
	db database.Querier
}

func NewNotificationStore(db database.Querier) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	err := scanner.Scan(
		&n.ID, &n.UserID, &n.FamilyID, &n.Type, &n.Message, &n.SenderID,
		&n.Read, &n.CreatedAt, &n.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const notificationCols = `id, user_id, family_id, type, message, sender_id, is_read, created_at, read_at`

func (s *NotificationStore) Create(ctx context.Context, userID string, familyID *int64, notifType, message string, senderID *string) (*model.Notification, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, family_id, type, message, sender_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		userID, familyID, notifType, message, senderID, false, now(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

// GetByID returns the notification only if it belongs to userID.
func (s *NotificationStore) GetByID(ctx context.Context, userID string, id int64) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// List returns the newest notifications of userID first. limit <= 0 means no
// limit.
func (s *NotificationStore) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`,
		userID, false,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead sets is_read and read_at together. Already read notifications keep
// their original read_at. It reports false when no such notification exists
// for userID.
func (s *NotificationStore) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ?, read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		true, now(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE user_id = ? AND is_read = ?`,
		true, now(), userID, false,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
