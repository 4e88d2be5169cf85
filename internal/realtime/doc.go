// Package realtime は通知のリアルタイム配信を行うWebSocketゲートウェイ。
//
// ユーザーはJWTで認証した上でWebSocket接続を確立し、ユーザー別ルームと
// ロール別ルーム（admins / nurses / patients）に自動的に参加する。
// 通知サービスが通知を作成すると、接続中のユーザーへ新着通知と未読件数が
// プッシュされる。配信はベストエフォートであり、未接続ユーザーへの通知は
// 永続化された通知一覧から取得される。
//
// 接続はプロセス内のHubが管理するため、配信が届くのは同一プロセスに
// 接続しているクライアントのみである。
package realtime
