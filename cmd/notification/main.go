// 通知サービスのエントリポイント。
// 通知の永続化を行うREST APIと、接続中ユーザーへのリアルタイム配信を行う
// WebSocketゲートウェイを1プロセスで提供する。
package main

import (
	"log"
	"os"

	"github.com/carebridge/notify/internal/notification"
	"github.com/carebridge/notify/internal/realtime"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8086"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	hub := realtime.NewHub()
	server, err := notification.NewServer(port, hub)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	gateway := realtime.NewGateway(hub, server.Service(), jwtSecret)
	server.MountWebSocket(gateway.Handler())

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
