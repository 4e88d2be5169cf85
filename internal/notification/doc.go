// Package notification は通知サービスの内部実装を提供する。
//
// 患者と看護師のマッチングプラットフォームにおけるドメインイベント
// （オファー提出・承認、依頼完了、レビュー受信など）をユーザーごとの
// 通知レコードとして永続化し、一覧取得・既読管理・削除・統計を行う。
// 通知の作成時には、コンストラクタで注入されたNotifier経由で
// リアルタイム配信を試みる。配信はベストエフォートであり、
// 失敗しても永続化には影響しない（クライアントはポーリングで補完する）。
package notification
