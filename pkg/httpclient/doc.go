// Package httpclient は通知サービスのREST APIを呼び出すクライアントを提供する。
//
// notifyctl（管理CLI）や外部のイベントプロデューサーが通知APIを
// 呼び出す際に使用する。JSONリクエストの組み立て・Bearerトークンの付与・
// エラーハンドリングのパターンを統一する。
package httpclient
