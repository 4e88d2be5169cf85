package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// defaultListLimit は一覧取得の1ページあたりのデフォルト件数。
const defaultListLimit = 20

// defaultCleanupDays は保持期間スイープのデフォルト日数。
const defaultCleanupDays = 30

// Service は通知の唯一の書き込み・照会経路。
// プロデューサー向けのフレーバーコンストラクタ（flavors.go）もここに属する。
type Service struct {
	// store は通知レコードの永続化層。
	store *Store
	// notifier はリアルタイム配信の能力。nilの場合、配信は行わない。
	// 配信の失敗は永続化の成否に影響しない。
	notifier Notifier
}

// NewService は新しい通知サービスを生成する。
// notifierにはリアルタイム配信の実装を渡す。配信が不要な場合はnilを渡す。
func NewService(store *Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Create は通知を1件作成して永続化し、リアルタイム配信を試みる。
// UserIDとTypeは必須。Priorityが未指定の場合はPriorityMediumになる。
// 配信の失敗はログに記録するのみで、呼び出し元には伝播しない。
func (s *Service) Create(ctx context.Context, params CreateParams) (*Notification, error) {
	n, err := s.build(params)
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	s.deliver(ctx, n)
	return n, nil
}

// CreateMany は複数の通知をまとめて作成する（システムアナウンス・管理者通知向け）。
// レコードごとに挿入するためトランザクショナルではない。一部が失敗しても
// 残りの挿入は継続し、挿入に成功したレコードのみ返す。件数は返り値が正。
func (s *Service) CreateMany(ctx context.Context, paramsList []CreateParams) ([]Notification, error) {
	created := make([]Notification, 0, len(paramsList))
	for _, params := range paramsList {
		n, err := s.Create(ctx, params)
		if err != nil {
			log.Printf("一括作成中の通知作成に失敗（継続します）: user_id=%s, %v", params.UserID, err)
			continue
		}
		created = append(created, *n)
	}
	return created, nil
}

// build はCreateParamsを検証し、Notificationレコードを組み立てる。
func (s *Service) build(params CreateParams) (*Notification, error) {
	if params.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if params.Type == "" {
		return nil, ErrTypeRequired
	}
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, params.Type)
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}

	var data json.RawMessage
	if params.Data != nil {
		jsonData, err := json.Marshal(params.Data)
		if err != nil {
			return nil, fmt.Errorf("通知ペイロードのシリアライズに失敗: %w", err)
		}
		data = jsonData
	}

	return &Notification{
		ID:                uuid.New().String(),
		UserID:            params.UserID,
		Type:              params.Type,
		Title:             params.Title,
		Message:           params.Message,
		Priority:          priority,
		IsRead:            false,
		RelatedEntityID:   params.RelatedEntityID,
		RelatedEntityType: params.RelatedEntityType,
		ActionURL:         params.ActionURL,
		Data:              data,
		ExpiresAt:         params.ExpiresAt,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// deliver は作成済み通知のリアルタイム配信を試みる。
// 未読件数の取得に失敗した場合も配信自体は行う（件数は0扱い）。
func (s *Service) deliver(ctx context.Context, n *Notification) {
	if s.notifier == nil {
		return
	}

	unreadCount, err := s.store.UnreadCount(ctx, n.UserID)
	if err != nil {
		log.Printf("リアルタイム配信用の未読件数取得に失敗: user_id=%s, %v", n.UserID, err)
	}
	s.notifier.NotifyUser(n.UserID, n, unreadCount)
}

// ListForUser は指定ユーザーの通知一覧をページネーション付きで取得する。
// 並び順は作成日時の降順。範囲外のページを指定した場合は空の一覧を返す。
func (s *Service) ListForUser(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := (page - 1) * limit

	notifications, err := s.store.ListByUser(ctx, userID, opts, limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := s.store.CountByUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	unreadCount, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Notifications: notifications,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
		},
		UnreadCount: unreadCount,
	}, nil
}

// MarkRead は指定ユーザーが所有する通知を既読にし、更新後のレコードを返す。
// 既に既読の場合は何も変更せずにレコードをそのまま返す（冪等）。
// 存在しない場合と他ユーザー所有の場合は、呼び出し元から区別できないよう
// どちらも（nil, nil）を返す。
func (s *Service) MarkRead(ctx context.Context, id, userID string) (*Notification, error) {
	if _, err := s.store.MarkRead(ctx, id, userID, time.Now().UTC()); err != nil {
		return nil, err
	}

	n, err := s.store.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if IsNotFound(err) {
			// 存在しない、または他ユーザー所有。どちらも未発見として扱う。
			return nil, nil
		}
		return nil, fmt.Errorf("既読後の通知取得に失敗: %w", err)
	}
	return n, nil
}

// MarkAllRead は指定ユーザーの全未読通知を既読にし、更新件数を返す。
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID, time.Now().UTC())
}

// Delete は指定ユーザーが所有する通知を1件削除する。
// 存在しない場合と他ユーザー所有の場合はどちらもfalseを返す。
func (s *Service) Delete(ctx context.Context, id, userID string) (bool, error) {
	return s.store.Delete(ctx, id, userID)
}

// DeleteAllForUser は指定ユーザーの全通知を削除し、削除件数を返す。
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteAllByUser(ctx, userID)
}

// UnreadCount は指定ユーザーの未読通知件数を返す。
// ポーリングクライアントと通知バッジが頻繁に呼び出す。
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

// CleanupOld は既読かつdaysOld日より古い通知を削除し、削除件数を返す。
// 未読の通知は作成日時に関わらず保持される。daysOldが0以下の場合は30日。
// 外部スケジューラーまたは管理者APIから定期的に呼び出されることを想定する。
func (s *Service) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = defaultCleanupDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	return s.store.DeleteReadBefore(ctx, cutoff)
}
