package realtime

import "encoding/json"

// クライアントから受信するイベント名。
const (
	// EventJoinRoom はルーム参加要求。
	EventJoinRoom = "join_room"
	// EventLeaveRoom はルーム退出要求。
	EventLeaveRoom = "leave_room"
	// EventMarkNotificationRead は通知の既読化要求。
	EventMarkNotificationRead = "mark_notification_read"
	// EventGetNotifications は通知一覧の取得要求。
	EventGetNotifications = "get_notifications"
)

// サーバーから送信するイベント名。
const (
	// EventNewNotification は新着通知のプッシュ。
	EventNewNotification = "new_notification"
	// EventUnreadCount は最新の未読件数のプッシュ。
	EventUnreadCount = "unread_count"
	// EventNotificationMarkedRead は既読化完了の応答。
	EventNotificationMarkedRead = "notification_marked_read"
	// EventNotificationsList は通知一覧の応答。
	EventNotificationsList = "notifications_list"
	// EventJoinedRoom はルーム参加完了の応答。
	EventJoinedRoom = "joined_room"
	// EventLeftRoom はルーム退出完了の応答。
	EventLeftRoom = "left_room"
	// EventError はエラー応答。
	EventError = "error"
)

// Envelope はWebSocket上でやり取りされるJSONメッセージの外枠。
// Eventがメッセージの種類を表し、Dataにイベント固有のペイロードが入る。
type Envelope struct {
	// Event はイベント名。
	Event string `json:"event"`
	// Data はイベント固有のペイロード。
	Data json.RawMessage `json:"data,omitempty"`
}

// newEnvelope はイベント名とペイロードからJSONメッセージを組み立てる。
// ペイロードのシリアライズに失敗した場合はnilとエラーを返す。
func newEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
