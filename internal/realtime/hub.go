package realtime

import (
	"fmt"
	"log"
	"sync"

	"github.com/carebridge/notify/internal/notification"
)

// ロール別ルーム名。
const (
	// RoomAdmins は管理者全員が参加するルーム。
	RoomAdmins = "admins"
	// RoomNurses は看護師全員が参加するルーム。
	RoomNurses = "nurses"
	// RoomPatients は患者全員が参加するルーム。
	RoomPatients = "patients"
)

// UserRoom は指定ユーザー専用のルーム名を返す。
func UserRoom(userID string) string {
	return fmt.Sprintf("user_%s", userID)
}

// RoleRoom はロールに対応するルーム名を返す。未知のロールは空文字列を返す。
func RoleRoom(role string) string {
	switch role {
	case "admin":
		return RoomAdmins
	case "nurse":
		return RoomNurses
	case "patient":
		return RoomPatients
	default:
		return ""
	}
}

// Hub はプロセス内の全WebSocket接続とルームを管理する。
// notification.Notifierを実装し、通知サービスからの配信要求を接続へ届ける。
// すべてのメソッドは複数ゴルーチンから同時に呼び出せる。
type Hub struct {
	// mu はclientsとroomsを保護する。
	mu sync.RWMutex
	// clients はユーザーIDからクライアントへのマップ。1ユーザー1接続。
	clients map[string]*Client
	// rooms はルーム名から参加中クライアントの集合へのマップ。
	rooms map[string]map[*Client]struct{}
}

// NewHub は空のHubを生成する。
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Register はクライアントをHubに登録する。
// 同一ユーザーの既存の接続がある場合は、古い接続を切断してから置き換える。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	if old != nil {
		h.removeLocked(old)
	}
	h.clients[c.userID] = c
	h.mu.Unlock()

	if old != nil {
		log.Printf("ユーザー %s の古いWebSocket接続を置き換えました", c.userID)
	}
}

// Unregister はクライアントをHubと全ルームから取り除く。
// 既に置き換え済みの接続に対しては何もしない。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] != c {
		return
	}
	delete(h.clients, c.userID)
	h.removeFromRoomsLocked(c)
	c.shutdown()
}

// removeLocked は古いクライアントを全ルームから外し、破棄済みにする。
// 送信キューはcloseしない。ロック外の配信処理がenqueueを呼ぶため、
// closeすると送信中の置き換え・切断でパニックする。
// 呼び出し側がmuを保持していること。
func (h *Hub) removeLocked(c *Client) {
	h.removeFromRoomsLocked(c)
	c.shutdown()
}

// removeFromRoomsLocked はクライアントを全ルームから外す。
// 呼び出し側がmuを保持していること。
func (h *Hub) removeFromRoomsLocked(c *Client) {
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// JoinRoom はクライアントをルームに参加させる。
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// LeaveRoom はクライアントをルームから退出させる。
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// IsConnected は指定ユーザーの接続が存在するかを返す。
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ConnectedCount は接続中のユーザー数を返す。
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToUser は指定ユーザーの接続にイベントを送信する。
// 接続が存在しないか送信キューが満杯の場合はメッセージを破棄する。
func (h *Hub) SendToUser(userID, event string, data any) {
	message, err := newEnvelope(event, data)
	if err != nil {
		log.Printf("WebSocketメッセージの作成に失敗: %v", err)
		return
	}

	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !c.enqueue(message) {
		log.Printf("ユーザー %s の送信キューが満杯のためメッセージを破棄しました", userID)
	}
}

// SendToRoom はルームに参加中の全接続にイベントを送信する。
func (h *Hub) SendToRoom(room, event string, data any) {
	message, err := newEnvelope(event, data)
	if err != nil {
		log.Printf("WebSocketメッセージの作成に失敗: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(message) {
			log.Printf("ユーザー %s の送信キューが満杯のためメッセージを破棄しました", c.userID)
		}
	}
}

// NotifyUser は新着通知と最新の未読件数を指定ユーザーの接続に配信する。
func (h *Hub) NotifyUser(userID string, n *notification.Notification, unreadCount int64) {
	h.SendToUser(userID, EventNewNotification, n)
	h.SendToUser(userID, EventUnreadCount, map[string]int64{"unreadCount": unreadCount})
}

// NotifyRole は指定ロールのルームに参加中の全接続に通知を配信する。
func (h *Hub) NotifyRole(role string, n *notification.Notification) {
	room := RoleRoom(role)
	if room == "" {
		log.Printf("未知のロールへの配信要求を無視しました: %s", role)
		return
	}
	h.SendToRoom(room, EventNewNotification, n)
}

// NotifyRoom は指定された名前のルームに通知を配信する。
func (h *Hub) NotifyRoom(room string, n *notification.Notification) {
	h.SendToRoom(room, EventNewNotification, n)
}

// Broadcast は接続中の全ユーザーに通知を配信する。
func (h *Hub) Broadcast(n *notification.Notification) {
	message, err := newEnvelope(EventNewNotification, n)
	if err != nil {
		log.Printf("WebSocketメッセージの作成に失敗: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(message) {
			log.Printf("ユーザー %s の送信キューが満杯のためメッセージを破棄しました", c.userID)
		}
	}
}
