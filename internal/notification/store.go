package notification

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carebridge/notify/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout はSQLiteに保存する日時の書式。
// 小数部を9桁固定にすることで、文字列比較が時系列順と一致する。
const timeLayout = "2006-01-02 15:04:05.000000000"

// notificationColumns はSELECT句で使用するカラムの並び。scanNotificationと同期すること。
const notificationColumns = `id, user_id, type, title, message, priority, is_read, read_at,
	related_entity_id, related_entity_type, action_url, data, expires_at, created_at`

// Store は通知レコードの永続化層。ビジネスロジックは持たない。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいStoreを生成し、マイグレーションを適用する。
func NewStore(db *sql.DB) (*Store, error) {
	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// formatTime は日時をUTCの固定書式文字列に変換する。
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseStoredTime は固定書式文字列をUTCの日時に変換する。
func parseStoredTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時のパースに失敗: %w", err)
	}
	return t, nil
}

// nullTimeString は省略可能な日時をsql.NullStringに変換する。
func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullString は空文字列をNULLとして扱うsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNotification は1行をNotificationに変換する。notificationColumnsと同期すること。
func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n                 Notification
		isRead            int64
		readAt            sql.NullString
		relatedEntityID   sql.NullString
		relatedEntityType sql.NullString
		actionURL         sql.NullString
		data              sql.NullString
		expiresAt         sql.NullString
		createdAt         string
	)

	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority,
		&isRead, &readAt, &relatedEntityID, &relatedEntityType, &actionURL,
		&data, &expiresAt, &createdAt)
	if err != nil {
		return nil, err
	}

	n.IsRead = isRead != 0
	n.RelatedEntityID = relatedEntityID.String
	n.RelatedEntityType = relatedEntityType.String
	n.ActionURL = actionURL.String
	if data.Valid {
		n.Data = []byte(data.String)
	}
	if readAt.Valid {
		t, err := parseStoredTime(readAt.String)
		if err != nil {
			return nil, err
		}
		n.ReadAt = &t
	}
	if expiresAt.Valid {
		t, err := parseStoredTime(expiresAt.String)
		if err != nil {
			return nil, err
		}
		n.ExpiresAt = &t
	}
	n.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

// Insert は通知レコードを1件挿入する。
func (s *Store) Insert(ctx context.Context, n *Notification) error {
	var data sql.NullString
	if len(n.Data) > 0 {
		data = sql.NullString{String: string(n.Data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, priority, is_read, read_at,
			related_entity_id, related_entity_type, action_url, data, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, string(n.Priority),
		boolToInt(n.IsRead), nullTimeString(n.ReadAt),
		nullString(n.RelatedEntityID), nullString(n.RelatedEntityType),
		nullString(n.ActionURL), data, nullTimeString(n.ExpiresAt), formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("通知レコードの挿入に失敗: %w", err)
	}
	return nil
}

// boolToInt はboolをSQLiteのINTEGER（0/1）に変換する。
func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// GetByIDForUser は指定ユーザーが所有する通知を1件取得する。
// 見つからない場合（他ユーザー所有の場合を含む）はsql.ErrNoRowsを返す。
func (s *Store) GetByIDForUser(ctx context.Context, id, userID string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanNotification(row)
}

// listFilter は絞り込み条件からWHERE句と引数を組み立てる。
func listFilter(userID string, opts ListOptions) (string, []any) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if opts.UnreadOnly {
		where = append(where, "is_read = 0")
	}
	if opts.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(opts.Type))
	}
	return strings.Join(where, " AND "), args
}

// ListByUser は指定ユーザーの通知を作成日時の降順で取得する。
func (s *Store) ListByUser(ctx context.Context, userID string, opts ListOptions, limit, offset int) ([]Notification, error) {
	where, args := listFilter(userID, opts)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+where+
			` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("通知レコードの読み取りに失敗: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// CountByUser は絞り込み条件に一致する通知の件数を返す。
func (s *Store) CountByUser(ctx context.Context, userID string, opts ListOptions) (int64, error) {
	where, args := listFilter(userID, opts)

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("通知件数の取得に失敗: %w", err)
	}
	return count, nil
}

// UnreadCount は指定ユーザーの未読通知件数を返す。
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は指定ユーザーが所有する未読の通知を既読にする。
// 既に既読の場合・存在しない場合・他ユーザー所有の場合は何も更新せずfalseを返す。
// read_atは最初の遷移時のみ設定され、以降変更されない。
func (s *Store) MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE id = ? AND user_id = ? AND is_read = 0`,
		formatTime(readAt), id, userID)
	if err != nil {
		return false, fmt.Errorf("既読処理に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead は指定ユーザーの全未読通知を既読にし、更新件数を返す。
func (s *Store) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE user_id = ? AND is_read = 0`,
		formatTime(readAt), userID)
	if err != nil {
		return 0, fmt.Errorf("全既読処理に失敗: %w", err)
	}
	return result.RowsAffected()
}

// Delete は指定ユーザーが所有する通知を1件削除する。削除できた場合trueを返す。
func (s *Store) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("通知の削除に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllByUser は指定ユーザーの全通知を削除し、削除件数を返す。
func (s *Store) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の全削除に失敗: %w", err)
	}
	return result.RowsAffected()
}

// DeleteReadBefore は既読かつ指定日時より古い通知を削除し、削除件数を返す。
// 未読の通知は作成日時に関わらず保持される。
func (s *Store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = 1 AND created_at < ?`,
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("古い通知の削除に失敗: %w", err)
	}
	return result.RowsAffected()
}

// CountAll は全通知の件数を返す。
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("総件数の取得に失敗: %w", err)
	}
	return count, nil
}

// CountUnreadAll は全ユーザーの未読通知の件数を返す。
func (s *Store) CountUnreadAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE is_read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読総件数の取得に失敗: %w", err)
	}
	return count, nil
}

// TypeCount は通知タイプごとの件数。
type TypeCount struct {
	// Type は通知タイプ。
	Type Type `json:"type"`
	// Count は件数。
	Count int64 `json:"count"`
}

// CountByType は通知タイプごとの件数を件数の降順で返す。
func (s *Store) CountByType(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) AS count FROM notifications
		GROUP BY type ORDER BY count DESC, type ASC`)
	if err != nil {
		return nil, fmt.Errorf("タイプ別件数の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("タイプ別件数の読み取りに失敗: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// PriorityCount は優先度ごとの件数。
type PriorityCount struct {
	// Priority は優先度。
	Priority Priority `json:"priority"`
	// Count は件数。
	Count int64 `json:"count"`
}

// CountByPriority は優先度ごとの件数を件数の降順で返す。
func (s *Store) CountByPriority(ctx context.Context) ([]PriorityCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT priority, COUNT(*) AS count FROM notifications
		GROUP BY priority ORDER BY count DESC, priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("優先度別件数の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []PriorityCount
	for rows.Next() {
		var pc PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, fmt.Errorf("優先度別件数の読み取りに失敗: %w", err)
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}

// ListRecent は全ユーザーの通知を作成日時の降順で最大limit件取得する。
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("最新通知の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("通知レコードの読み取りに失敗: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// IsNotFound はストア操作のエラーがレコード未発見によるものかを返す。
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
