package notification

import (
	"context"
	"math"
	"time"
)

// recentStatsLimit は統計レポートに含める最新通知の件数。
const recentStatsLimit = 10

// StatsNotification は統計レポート用の最小限の通知プロジェクション。
type StatsNotification struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Type は通知タイプ。
	Type Type `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Priority は通知の優先度。
	Priority Priority `json:"priority"`
	// IsRead は既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"created_at"`
}

// Stats は管理者向けの通知統計レポート。キャッシュせず都度計算する。
type Stats struct {
	// TotalNotifications は全通知の件数。
	TotalNotifications int64 `json:"total_notifications"`
	// UnreadNotifications は全ユーザーの未読通知の件数。
	UnreadNotifications int64 `json:"unread_notifications"`
	// ReadRate は既読率（パーセント、小数第2位まで）。
	ReadRate float64 `json:"read_rate"`
	// NotificationsByType はタイプ別の件数（件数の降順）。
	NotificationsByType []TypeCount `json:"notifications_by_type"`
	// NotificationsByPriority は優先度別の件数（件数の降順）。
	NotificationsByPriority []PriorityCount `json:"notifications_by_priority"`
	// RecentNotifications は最新10件の通知（最小限のプロジェクション）。
	RecentNotifications []StatsNotification `json:"recent_notifications"`
}

// Stats は管理者向けの統計レポートを計算して返す。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	unread, err := s.store.CountUnreadAll(ctx)
	if err != nil {
		return nil, err
	}

	byType, err := s.store.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	byPriority, err := s.store.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.ListRecent(ctx, recentStatsLimit)
	if err != nil {
		return nil, err
	}

	var readRate float64
	if total > 0 {
		readRate = float64(total-unread) / float64(total) * 100
		readRate = math.Round(readRate*100) / 100
	}

	recentStats := make([]StatsNotification, 0, len(recent))
	for _, n := range recent {
		recentStats = append(recentStats, StatsNotification{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Priority:  n.Priority,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}

	return &Stats{
		TotalNotifications:      total,
		UnreadNotifications:     unread,
		ReadRate:                readRate,
		NotificationsByType:     byType,
		NotificationsByPriority: byPriority,
		RecentNotifications:     recentStats,
	}, nil
}

// Preferences はユーザーの通知設定。
// 現状は永続化せず、固定のデフォルト値を返すプレースホルダー実装。
type Preferences struct {
	// EmailNotifications はメール通知の有効/無効。
	EmailNotifications bool `json:"emailNotifications"`
	// PushNotifications はプッシュ通知の有効/無効。
	PushNotifications bool `json:"pushNotifications"`
	// SMSNotifications はSMS通知の有効/無効。
	SMSNotifications bool `json:"smsNotifications"`
	// NotificationTypes はタイプ別の有効/無効。
	NotificationTypes map[Type]bool `json:"notificationTypes"`
}

// DefaultPreferences はデフォルトの通知設定を返す。
// メールとプッシュは有効、SMSは無効、全タイプ有効。
func DefaultPreferences() Preferences {
	types := map[Type]bool{
		TypeRequestApplication: true,
		TypeRequestAccepted:    true,
		TypeRequestRejected:    true,
		TypeRequestCompleted:   true,
		TypeRequestCancelled:   true,
		TypeNurseApproved:      true,
		TypeNurseRejected:      true,
		TypeReviewReceived:     true,
		TypePaymentReceived:    true,
		TypeSystemAnnouncement: true,
		TypeReminder:           true,
	}
	return Preferences{
		EmailNotifications: true,
		PushNotifications:  true,
		SMSNotifications:   false,
		NotificationTypes:  types,
	}
}
