package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1メッセージの書き込みに許容する時間。
	writeWait = 10 * time.Second
	// pongWait はクライアントからのpong応答を待つ時間。
	pongWait = 60 * time.Second
	// pingPeriod はpingの送信間隔。pongWaitより短くすること。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はクライアントから受信するメッセージの最大バイト数。
	maxMessageSize = 4096
	// sendBufferSize は送信キューの容量。あふれたメッセージは破棄される。
	sendBufferSize = 64
)

// Client はWebSocket接続1本とその送信キューを表す。
type Client struct {
	// userID は接続しているユーザーのID。
	userID string
	// role は接続しているユーザーのロール。
	role string
	// conn はWebSocket接続。
	conn *websocket.Conn
	// send は送信待ちメッセージのキュー。closeはしない。
	// 終了はdoneで通知する。Hubのロック外からenqueueされるため、
	// closeするとenqueueとの競合でパニックする。
	send chan []byte
	// done を閉じるとwritePumpが終了し、以後のenqueueは破棄される。
	done chan struct{}
	// closeOnce はdoneを一度だけ閉じるためのガード。
	closeOnce sync.Once
}

// newClient は認証済みのWebSocket接続からクライアントを生成する。
func newClient(userID, role string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// shutdown はクライアントを破棄済みにする。複数回呼んでも安全。
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue はメッセージを送信キューに積む。
// キューが満杯の場合はメッセージを破棄してfalseを返す。ブロックはしない。
// 破棄済みのクライアントへのメッセージは黙って捨てる。
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- message:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump は送信キューのメッセージを接続へ書き込み続ける。
// 接続ごとに1つのゴルーチンで実行し、接続への書き込みはここに集約する。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Hubがこの接続を破棄した
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump はクライアントからのメッセージを読み続け、handlerに渡す。
// 読み取りエラーで終了し、戻る前に接続を閉じる。
func (c *Client) readPump(handler func(*Client, []byte)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket読み取りエラー (user=%s): %v", c.userID, err)
			}
			return
		}
		handler(c, message)
	}
}
