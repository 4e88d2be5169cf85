package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/carebridge/notify/internal/notification"
	"github.com/carebridge/notify/pkg/middleware"
)

// Gateway はWebSocket接続の受け入れとクライアントイベントの処理を行う。
type Gateway struct {
	// hub は接続とルームの管理者。
	hub *Hub
	// svc は通知のビジネスロジック層。既読化と一覧取得に使用する。
	svc *notification.Service
	// jwtSecret はハンドシェイク時のトークン検証に使用する秘密鍵。
	jwtSecret string
	// upgrader はHTTP接続をWebSocketにアップグレードする。
	upgrader websocket.Upgrader
}

// NewGateway は新しいWebSocketゲートウェイを生成する。
func NewGateway(hub *Hub, svc *notification.Service, jwtSecret string) *Gateway {
	return &Gateway{
		hub:       hub,
		svc:       svc,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// オリジン検証はCORSミドルウェアと同様にフロントエンドに限定しない。
			// 認証はハンドシェイク時のJWT検証で行う。
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler はWebSocket接続を受け入れるginハンドラを返す。
// トークンはAuthorizationヘッダー（Bearer形式）またはtokenクエリパラメータで受け取る。
// 認証に失敗した場合はアップグレードせずに401を返す。
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証トークンがありません"})
			return
		}

		claims, err := middleware.VerifyJWT(g.jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証トークンが無効です"})
			return
		}

		conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocketアップグレードに失敗 (user=%s): %v", claims.UserID, err)
			return
		}

		client := newClient(claims.UserID, claims.Role, conn)
		g.hub.Register(client)

		// ユーザー別ルームとロール別ルームに自動参加する
		g.hub.JoinRoom(client, UserRoom(client.userID))
		if room := RoleRoom(client.role); room != "" {
			g.hub.JoinRoom(client, room)
		}

		log.Printf("ユーザー %s がWebSocket接続しました (role=%s)", client.userID, client.role)

		go client.writePump()
		g.pushUnreadCount(c.Request.Context(), client)

		go func() {
			client.readPump(g.handleMessage)
			g.hub.Unregister(client)
			log.Printf("ユーザー %s のWebSocket接続が切断されました", client.userID)
		}()
	}
}

// extractToken はリクエストから認証トークンを取り出す。
// AuthorizationヘッダーのBearer形式を優先し、なければtokenクエリパラメータを見る。
func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// handleMessage はクライアントから受信した1メッセージを処理する。
// 未知のイベントや不正なペイロードはerrorイベントで応答する。
func (g *Gateway) handleMessage(client *Client, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		g.sendError(client, "メッセージの形式が不正です")
		return
	}

	switch env.Event {
	case EventJoinRoom:
		g.handleJoinRoom(client, env.Data)
	case EventLeaveRoom:
		g.handleLeaveRoom(client, env.Data)
	case EventMarkNotificationRead:
		g.handleMarkRead(client, env.Data)
	case EventGetNotifications:
		g.handleGetNotifications(client, env.Data)
	default:
		g.sendError(client, "未知のイベントです: "+env.Event)
	}
}

// roomPayload はjoin_room / leave_roomイベントのペイロード。
type roomPayload struct {
	// Room は対象のルーム名。
	Room string `json:"room"`
}

// handleJoinRoom はルーム参加要求を処理する。
// 任意の名前のルーム（依頼ごとのウォッチチャンネルなど）に参加できるが、
// 他ユーザーの個人ルームと自分以外のロールのルームは拒否する。
func (g *Gateway) handleJoinRoom(client *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		g.sendError(client, "ルーム名が不正です")
		return
	}

	if !g.canJoin(client, p.Room) {
		g.sendError(client, "このルームには参加できません: "+p.Room)
		return
	}

	g.hub.JoinRoom(client, p.Room)
	g.send(client, EventJoinedRoom, roomPayload{Room: p.Room})
}

// handleLeaveRoom はルーム退出要求を処理する。
func (g *Gateway) handleLeaveRoom(client *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		g.sendError(client, "ルーム名が不正です")
		return
	}

	g.hub.LeaveRoom(client, p.Room)
	g.send(client, EventLeftRoom, roomPayload{Room: p.Room})
}

// canJoin はクライアントがルームに参加できるかを判定する。
func (g *Gateway) canJoin(client *Client, room string) bool {
	// 個人ルームは本人のみ
	if strings.HasPrefix(room, "user_") {
		return room == UserRoom(client.userID)
	}
	// ロール別ルームは該当ロールのみ
	switch room {
	case RoomAdmins, RoomNurses, RoomPatients:
		return room == RoleRoom(client.role)
	}
	// それ以外は任意のウォッチチャンネルとして参加を許可する
	return true
}

// markReadPayload はmark_notification_readイベントのペイロード。
type markReadPayload struct {
	// NotificationID は既読化する通知のID。
	NotificationID string `json:"notificationId"`
}

// handleMarkRead は通知の既読化要求を処理する。
// 成功すると既読化完了の応答と最新の未読件数をプッシュする。
func (g *Gateway) handleMarkRead(client *Client, data json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.NotificationID == "" {
		g.sendError(client, "通知IDが不正です")
		return
	}

	ctx := context.Background()
	n, err := g.svc.MarkRead(ctx, p.NotificationID, client.userID)
	if err != nil {
		log.Printf("通知既読化エラー (user=%s): %v", client.userID, err)
		g.sendError(client, "通知の既読化に失敗しました")
		return
	}
	if n == nil {
		g.sendError(client, "通知が見つかりません")
		return
	}

	g.send(client, EventNotificationMarkedRead, markReadPayload{NotificationID: p.NotificationID})
	g.pushUnreadCount(ctx, client)
}

// getNotificationsPayload はget_notificationsイベントのペイロード。
type getNotificationsPayload struct {
	// Page は1始まりのページ番号。
	Page int `json:"page"`
	// Limit は1ページあたりの件数。
	Limit int `json:"limit"`
	// UnreadOnly がtrueの場合、未読の通知のみ返す。
	UnreadOnly bool `json:"unreadOnly"`
}

// handleGetNotifications は通知一覧の取得要求を処理する。
func (g *Gateway) handleGetNotifications(client *Client, data json.RawMessage) {
	var p getNotificationsPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			g.sendError(client, "ペイロードが不正です")
			return
		}
	}

	result, err := g.svc.ListForUser(context.Background(), client.userID, notification.ListOptions{
		Page:       p.Page,
		Limit:      p.Limit,
		UnreadOnly: p.UnreadOnly,
	})
	if err != nil {
		log.Printf("通知一覧取得エラー (user=%s): %v", client.userID, err)
		g.sendError(client, "通知一覧の取得に失敗しました")
		return
	}

	g.send(client, EventNotificationsList, result)
}

// pushUnreadCount は最新の未読件数をクライアントにプッシュする。
func (g *Gateway) pushUnreadCount(ctx context.Context, client *Client) {
	count, err := g.svc.UnreadCount(ctx, client.userID)
	if err != nil {
		log.Printf("未読件数取得エラー (user=%s): %v", client.userID, err)
		return
	}
	g.send(client, EventUnreadCount, map[string]int64{"unreadCount": count})
}

// send はクライアントにイベントを送信する。キューが満杯の場合は破棄する。
func (g *Gateway) send(client *Client, event string, data any) {
	message, err := newEnvelope(event, data)
	if err != nil {
		log.Printf("WebSocketメッセージの作成に失敗: %v", err)
		return
	}
	if !client.enqueue(message) {
		log.Printf("ユーザー %s の送信キューが満杯のためメッセージを破棄しました", client.userID)
	}
}

// errorPayload はerrorイベントのペイロード。
type errorPayload struct {
	// Message はエラーメッセージ。
	Message string `json:"message"`
}

// sendError はエラーイベントをクライアントに送信する。
func (g *Gateway) sendError(client *Client, message string) {
	g.send(client, EventError, errorPayload{Message: message})
}
