package notification

import (
	"encoding/json"
	"errors"
	"time"
)

// Type は通知を発生させたドメインイベントの種類を表す。
type Type string

const (
	// TypeRequestApplication は看護師がケア依頼に応募（オファー提出）したことを表す。
	TypeRequestApplication Type = "request_application"
	// TypeRequestAccepted は患者が応募（オファー）を承諾したことを表す。
	TypeRequestAccepted Type = "request_accepted"
	// TypeRequestRejected は患者が応募（オファー）を辞退したことを表す。
	TypeRequestRejected Type = "request_rejected"
	// TypeRequestCompleted はケア依頼が完了したことを表す。
	TypeRequestCompleted Type = "request_completed"
	// TypeRequestCancelled はケア依頼がキャンセルされたことを表す。
	TypeRequestCancelled Type = "request_cancelled"
	// TypeNurseApproved は看護師の登録申請が承認されたことを表す。
	TypeNurseApproved Type = "nurse_approved"
	// TypeNurseRejected は看護師の登録申請が却下されたことを表す。
	TypeNurseRejected Type = "nurse_rejected"
	// TypeReviewReceived はレビューを受け取ったことを表す。
	TypeReviewReceived Type = "review_received"
	// TypePaymentReceived は支払いを受け取ったことを表す。
	TypePaymentReceived Type = "payment_received"
	// TypeSystemAnnouncement はシステム全体のお知らせを表す。
	TypeSystemAnnouncement Type = "system_announcement"
	// TypeReminder はリマインダーを表す。
	TypeReminder Type = "reminder"
)

// Valid は通知タイプが定義済みの値であるかを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeRequestApplication, TypeRequestAccepted, TypeRequestRejected,
		TypeRequestCompleted, TypeRequestCancelled, TypeNurseApproved,
		TypeNurseRejected, TypeReviewReceived, TypePaymentReceived,
		TypeSystemAnnouncement, TypeReminder:
		return true
	}
	return false
}

// Priority は通知の優先度を表す。クライアント側の表示スタイルにのみ影響し、
// サーバー内部のルーティングには影響しない。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "low"
	// PriorityMedium は中優先度（デフォルト）。
	PriorityMedium Priority = "medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
	// PriorityUrgent は緊急。
	PriorityUrgent Priority = "urgent"
)

// Valid は優先度が定義済みの値であるかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Notification は永続化される通知レコードを表す。
// タイトル・本文・優先度は作成後に変更されない。変更されるのは既読状態のみ。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `json:"id"`
	// UserID は通知先（受信者）のユーザーID。
	UserID string `json:"user_id"`
	// Type は通知を発生させたドメインイベントの種類。
	Type Type `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Priority は通知の優先度。
	Priority Priority `json:"priority"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// ReadAt は未読から既読に遷移した日時。一度設定されたら変更されない。
	ReadAt *time.Time `json:"read_at,omitempty"`
	// RelatedEntityID は通知の発生元ドメインオブジェクトのID（任意・未検証）。
	RelatedEntityID string `json:"related_entity_id,omitempty"`
	// RelatedEntityType は発生元ドメインオブジェクトの種類（例: "request", "user"）。
	RelatedEntityType string `json:"related_entity_type,omitempty"`
	// ActionURL はクライアントの遷移先のヒント。
	ActionURL string `json:"action_url,omitempty"`
	// Data はイベント固有のコンテキスト（JSON形式）。プロデューサーごとに形が異なる。
	Data json.RawMessage `json:"data,omitempty"`
	// ExpiresAt は通知の有効期限（任意）。
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// CreatedAt は通知の作成日時。一覧の並び順と保持期間の判定に使用する。
	CreatedAt time.Time `json:"created_at"`
}

// CreateParams は通知作成の入力パラメータ。
// UserIDとTypeは必須。その他は省略可能で、PriorityはデフォルトでPriorityMedium。
type CreateParams struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Type は通知タイプ。
	Type Type `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Priority は通知の優先度。未指定の場合はPriorityMedium。
	Priority Priority `json:"priority,omitempty"`
	// RelatedEntityID は発生元ドメインオブジェクトのID。
	RelatedEntityID string `json:"related_entity_id,omitempty"`
	// RelatedEntityType は発生元ドメインオブジェクトの種類。
	RelatedEntityType string `json:"related_entity_type,omitempty"`
	// ActionURL はクライアントの遷移先のヒント。
	ActionURL string `json:"action_url,omitempty"`
	// Data はイベント固有のペイロード。JSON形式にシリアライズされる。
	Data any `json:"data,omitempty"`
	// ExpiresAt は通知の有効期限。
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// 通知作成時のバリデーションエラー。
var (
	// ErrUserIDRequired は通知先ユーザーIDが未指定の場合のエラー。
	ErrUserIDRequired = errors.New("通知先ユーザーIDは必須です")
	// ErrTypeRequired は通知タイプが未指定の場合のエラー。
	ErrTypeRequired = errors.New("通知タイプは必須です")
	// ErrInvalidType は通知タイプが定義外の値の場合のエラー。
	ErrInvalidType = errors.New("通知タイプが不正です")
	// ErrInvalidPriority は優先度が定義外の値の場合のエラー。
	ErrInvalidPriority = errors.New("優先度が不正です")
)

// ListOptions は通知一覧取得の絞り込み・ページネーション条件。
type ListOptions struct {
	// Page は1始まりのページ番号。0以下の場合は1として扱う。
	Page int
	// Limit は1ページあたりの件数。0以下の場合は20として扱う。
	Limit int
	// UnreadOnly がtrueの場合、未読の通知のみ返す。
	UnreadOnly bool
	// Type を指定した場合、そのタイプの通知のみ返す。
	Type Type
}

// Pagination は一覧レスポンスのページネーション情報。
type Pagination struct {
	// Page は現在のページ番号。
	Page int `json:"page"`
	// Limit は1ページあたりの件数。
	Limit int `json:"limit"`
	// Total は条件に一致する総件数。
	Total int64 `json:"total"`
	// Pages は総ページ数（ceil(Total/Limit)）。
	Pages int `json:"pages"`
}

// ListResult は通知一覧取得の結果。
type ListResult struct {
	// Notifications は作成日時の降順（新しい順）の通知一覧。
	Notifications []Notification `json:"notifications"`
	// Pagination はページネーション情報。
	Pagination Pagination `json:"pagination"`
	// UnreadCount は絞り込み条件に関わらず、そのユーザーの現在の未読件数。
	UnreadCount int64 `json:"unreadCount"`
}

// Notifier はリアルタイム配信の能力を表すインターフェース。
// Serviceのコンストラクタに注入される。実装はinternal/realtimeのHub。
// すべてのメソッドはfire-and-forgetであり、配信確認もリトライも行わない。
type Notifier interface {
	// NotifyUser は指定ユーザーの接続に新着通知と最新の未読件数を配信する。
	// 接続が存在しない場合は何もしない。
	NotifyUser(userID string, n *Notification, unreadCount int64)
	// NotifyRole は指定ロールのルームに参加中の全接続に通知を配信する。
	NotifyRole(role string, n *Notification)
	// NotifyRoom は指定された名前のルームに通知を配信する。
	NotifyRoom(room string, n *Notification)
	// Broadcast は全接続に通知を配信する。
	Broadcast(n *Notification)
}
