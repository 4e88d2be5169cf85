package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	"github.com/carebridge/notify/internal/notification"
	"github.com/carebridge/notify/pkg/middleware"
)

const testSecret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

// setupGateway はテスト用のWebSocketゲートウェイ一式を構築する。
// インメモリSQLiteの通知サービスとHubを組み合わせ、httptestサーバーで公開する。
func setupGateway(t *testing.T) (*notification.Service, *Hub, *httptest.Server) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	store, err := notification.NewStore(sqlDB)
	if err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	hub := NewHub()
	svc := notification.NewService(store, hub)
	gateway := NewGateway(hub, svc, testSecret)

	router := gin.New()
	router.GET("/ws/notifications", gateway.Handler())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return svc, hub, srv
}

// generateTestToken はテスト用のJWTを生成するヘルパー関数。
func generateTestToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testSecret, userID, userID+"@example.com", role, "テストユーザー")
	if err != nil {
		t.Fatalf("JWTの生成に失敗: %v", err)
	}
	return token
}

// dialWS はトークン付きでWebSocket接続を確立するヘルパー関数。
// 接続直後にプッシュされる未読件数も読み捨てずに返す。
func dialWS(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, Envelope) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket接続に失敗: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// 接続直後の未読件数プッシュを受信した時点でルーム参加まで完了している
	initial := readEnvelope(t, conn)
	if initial.Event != EventUnreadCount {
		t.Fatalf("接続直後のイベント: got %s, want %s", initial.Event, EventUnreadCount)
	}
	return conn, initial
}

// readEnvelope はWebSocketから1メッセージを読み取ってデコードするヘルパー関数。
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("メッセージの読み取りに失敗: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		t.Fatalf("メッセージのデコードに失敗: %v", err)
	}
	return env
}

// writeEnvelope はWebSocketにイベントを書き込むヘルパー関数。
func writeEnvelope(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	message, err := newEnvelope(event, data)
	if err != nil {
		t.Fatalf("メッセージの作成に失敗: %v", err)
	}
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
		t.Fatalf("メッセージの書き込みに失敗: %v", err)
	}
}

// unreadCountOf はunread_countイベントのペイロードから件数を取り出すヘルパー関数。
func unreadCountOf(t *testing.T, env Envelope) int64 {
	t.Helper()
	var payload map[string]int64
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("未読件数のデコードに失敗: %v", err)
	}
	return payload["unreadCount"]
}

// TestGatewayAuth はハンドシェイク認証のテスト。
func TestGatewayAuth(t *testing.T) {
	t.Parallel()

	t.Run("トークンなしの接続は拒否される", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("トークンなしで接続できてしまいました")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %v, want %d", resp, http.StatusUnauthorized)
		}
	})

	t.Run("不正なトークンの接続は拒否される", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?token=bogus"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("不正なトークンで接続できてしまいました")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %v, want %d", resp, http.StatusUnauthorized)
		}
	})

	t.Run("Authorizationヘッダーのトークンでも接続できる", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		token := generateTestToken(t, "user-1", "patient")
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
		header := http.Header{"Authorization": []string{"Bearer " + token}}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err != nil {
			t.Fatalf("WebSocket接続に失敗: %v", err)
		}
		defer conn.Close()

		env := readEnvelope(t, conn)
		if env.Event != EventUnreadCount {
			t.Errorf("接続直後のイベント: got %s, want %s", env.Event, EventUnreadCount)
		}
	})
}

// TestGatewayLiveDelivery は接続中ユーザーへのリアルタイム配信のテスト。
func TestGatewayLiveDelivery(t *testing.T) {
	t.Parallel()

	svc, _, srv := setupGateway(t)

	token := generateTestToken(t, "user-1", "patient")
	conn, initial := dialWS(t, srv, token)

	if unreadCountOf(t, initial) != 0 {
		t.Errorf("接続直後の未読件数: got %d, want 0", unreadCountOf(t, initial))
	}

	created, err := svc.Create(context.Background(), notification.CreateParams{
		UserID:  "user-1",
		Type:    notification.TypeReviewReceived,
		Title:   "新着レビュー",
		Message: "レビューが届きました",
	})
	if err != nil {
		t.Fatalf("通知の作成に失敗: %v", err)
	}

	// 新着通知と更新後の未読件数が順に届く
	first := readEnvelope(t, conn)
	if first.Event != EventNewNotification {
		t.Fatalf("1通目のイベント: got %s, want %s", first.Event, EventNewNotification)
	}
	var got notification.Notification
	if err := json.Unmarshal(first.Data, &got); err != nil {
		t.Fatalf("通知のデコードに失敗: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("通知ID: got %s, want %s", got.ID, created.ID)
	}
	if got.Title != "新着レビュー" {
		t.Errorf("タイトル: got %s, want 新着レビュー", got.Title)
	}

	second := readEnvelope(t, conn)
	if second.Event != EventUnreadCount {
		t.Fatalf("2通目のイベント: got %s, want %s", second.Event, EventUnreadCount)
	}
	if unreadCountOf(t, second) != 1 {
		t.Errorf("未読件数: got %d, want 1", unreadCountOf(t, second))
	}
}

// TestGatewayMarkRead はWebSocket経由の既読化のテスト。
func TestGatewayMarkRead(t *testing.T) {
	t.Parallel()

	svc, _, srv := setupGateway(t)

	created, err := svc.Create(context.Background(), notification.CreateParams{
		UserID:  "user-1",
		Type:    notification.TypeReminder,
		Title:   "リマインド",
		Message: "m",
	})
	if err != nil {
		t.Fatalf("通知の作成に失敗: %v", err)
	}

	token := generateTestToken(t, "user-1", "patient")
	conn, initial := dialWS(t, srv, token)
	if unreadCountOf(t, initial) != 1 {
		t.Fatalf("接続直後の未読件数: got %d, want 1", unreadCountOf(t, initial))
	}

	writeEnvelope(t, conn, EventMarkNotificationRead, map[string]string{"notificationId": created.ID})

	marked := readEnvelope(t, conn)
	if marked.Event != EventNotificationMarkedRead {
		t.Fatalf("イベント: got %s, want %s", marked.Event, EventNotificationMarkedRead)
	}

	count := readEnvelope(t, conn)
	if count.Event != EventUnreadCount {
		t.Fatalf("イベント: got %s, want %s", count.Event, EventUnreadCount)
	}
	if unreadCountOf(t, count) != 0 {
		t.Errorf("既読化後の未読件数: got %d, want 0", unreadCountOf(t, count))
	}
}

// TestGatewayGetNotifications はWebSocket経由の一覧取得のテスト。
func TestGatewayGetNotifications(t *testing.T) {
	t.Parallel()

	svc, _, srv := setupGateway(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), notification.CreateParams{
			UserID:  "user-1",
			Type:    notification.TypeReminder,
			Title:   fmt.Sprintf("通知%d", i),
			Message: "m",
		}); err != nil {
			t.Fatalf("通知の作成に失敗: %v", err)
		}
	}

	token := generateTestToken(t, "user-1", "patient")
	conn, _ := dialWS(t, srv, token)

	writeEnvelope(t, conn, EventGetNotifications, map[string]any{"page": 1, "limit": 10})

	env := readEnvelope(t, conn)
	if env.Event != EventNotificationsList {
		t.Fatalf("イベント: got %s, want %s", env.Event, EventNotificationsList)
	}

	var result notification.ListResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("一覧のデコードに失敗: %v", err)
	}
	if len(result.Notifications) != 3 {
		t.Errorf("件数: got %d, want 3", len(result.Notifications))
	}
	if result.UnreadCount != 3 {
		t.Errorf("未読件数: got %d, want 3", result.UnreadCount)
	}
}

// TestGatewayRooms はルーム参加・退出のテスト。
func TestGatewayRooms(t *testing.T) {
	t.Parallel()

	t.Run("自分のユーザールームに参加できる", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		token := generateTestToken(t, "user-1", "patient")
		conn, _ := dialWS(t, srv, token)

		writeEnvelope(t, conn, EventJoinRoom, map[string]string{"room": UserRoom("user-1")})

		env := readEnvelope(t, conn)
		if env.Event != EventJoinedRoom {
			t.Errorf("イベント: got %s, want %s", env.Event, EventJoinedRoom)
		}
	})

	t.Run("任意のウォッチチャンネルに参加して配信を受け取れる", func(t *testing.T) {
		t.Parallel()
		_, hub, srv := setupGateway(t)

		token := generateTestToken(t, "user-1", "patient")
		conn, _ := dialWS(t, srv, token)

		writeEnvelope(t, conn, EventJoinRoom, map[string]string{"room": "request_42"})

		env := readEnvelope(t, conn)
		if env.Event != EventJoinedRoom {
			t.Fatalf("イベント: got %s, want %s", env.Event, EventJoinedRoom)
		}

		hub.NotifyRoom("request_42", &notification.Notification{ID: "n-1", Type: notification.TypeRequestAccepted})

		pushed := readEnvelope(t, conn)
		if pushed.Event != EventNewNotification {
			t.Errorf("イベント: got %s, want %s", pushed.Event, EventNewNotification)
		}
	})

	t.Run("他人のユーザールームへの参加は拒否される", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		token := generateTestToken(t, "user-1", "patient")
		conn, _ := dialWS(t, srv, token)

		writeEnvelope(t, conn, EventJoinRoom, map[string]string{"room": UserRoom("user-2")})

		env := readEnvelope(t, conn)
		if env.Event != EventError {
			t.Errorf("イベント: got %s, want %s", env.Event, EventError)
		}
	})

	t.Run("他ロールのルームへの参加は拒否される", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		token := generateTestToken(t, "user-1", "patient")
		conn, _ := dialWS(t, srv, token)

		writeEnvelope(t, conn, EventJoinRoom, map[string]string{"room": RoomAdmins})

		env := readEnvelope(t, conn)
		if env.Event != EventError {
			t.Errorf("イベント: got %s, want %s", env.Event, EventError)
		}
	})

	t.Run("ルームから退出できる", func(t *testing.T) {
		t.Parallel()
		_, _, srv := setupGateway(t)

		token := generateTestToken(t, "nurse-1", "nurse")
		conn, _ := dialWS(t, srv, token)

		writeEnvelope(t, conn, EventLeaveRoom, map[string]string{"room": RoomNurses})

		env := readEnvelope(t, conn)
		if env.Event != EventLeftRoom {
			t.Errorf("イベント: got %s, want %s", env.Event, EventLeftRoom)
		}
	})
}

// TestGatewayRoleIsolation はロール別ルームの配信分離のテスト。
func TestGatewayRoleIsolation(t *testing.T) {
	t.Parallel()

	_, hub, srv := setupGateway(t)

	nurseConn, _ := dialWS(t, srv, generateTestToken(t, "nurse-1", "nurse"))
	patientConn, _ := dialWS(t, srv, generateTestToken(t, "patient-1", "patient"))

	// 看護師ルームへの配信
	hub.NotifyRole("nurse", &notification.Notification{
		ID:    "n-1",
		Type:  notification.TypeSystemAnnouncement,
		Title: "看護師向けのお知らせ",
	})
	// 続けて患者に直接配信する。患者側で最初に届くのがこのメッセージであれば、
	// 看護師向けの配信は患者に届いていない。
	hub.SendToUser("patient-1", EventUnreadCount, map[string]int64{"unreadCount": 0})

	nurseEnv := readEnvelope(t, nurseConn)
	if nurseEnv.Event != EventNewNotification {
		t.Errorf("看護師側のイベント: got %s, want %s", nurseEnv.Event, EventNewNotification)
	}

	patientEnv := readEnvelope(t, patientConn)
	if patientEnv.Event != EventUnreadCount {
		t.Errorf("患者側のイベント: got %s, want %s", patientEnv.Event, EventUnreadCount)
	}
}

// TestGatewayUnknownEvent は未知のイベントの応答のテスト。
func TestGatewayUnknownEvent(t *testing.T) {
	t.Parallel()

	_, _, srv := setupGateway(t)

	token := generateTestToken(t, "user-1", "patient")
	conn, _ := dialWS(t, srv, token)

	writeEnvelope(t, conn, "bogus_event", nil)

	env := readEnvelope(t, conn)
	if env.Event != EventError {
		t.Errorf("イベント: got %s, want %s", env.Event, EventError)
	}
}
