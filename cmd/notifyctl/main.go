// notifyctl は通知サービスを運用するためのCLIツール。
//
// 使用例:
//
//	notifyctl send --user u-1 --type system_announcement --title "お知らせ" --message "本文"
//	notifyctl announce --users u-1,u-2 --title "メンテナンス" --message "本日22時から"
//	notifyctl stats
//	notifyctl cleanup --days 30
//
// 接続先と認証トークンは--url / --tokenフラグ、または
// NOTIFY_API_URL / NOTIFY_TOKEN環境変数で指定する。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carebridge/notify/pkg/httpclient"
)

var (
	// apiURL は通知サービスのベースURL。
	apiURL string
	// token はAPI認証に使用するJWT。
	token string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notifyctl",
		Short: "通知サービスの運用コマンド",
		Long: `notifyctl は通知サービスのREST APIを呼び出す運用ツール。

通知の手動送信、システムアナウンスの一括送信、統計情報の確認、
古い既読通知の掃除を行う。管理者ロールのJWTが必要なコマンドがある。`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "url", envOr("NOTIFY_API_URL", "http://localhost:8086"), "通知サービスのベースURL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("NOTIFY_TOKEN"), "API認証に使用するJWT")

	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(announceCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(cleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newAPIClient はグローバルフラグから通知サービスのHTTPクライアントを生成する。
func newAPIClient() *httpclient.Client {
	return httpclient.NewWithToken(apiURL, token)
}

// envOr は環境変数の値を返す。未設定の場合はfallbackを返す。
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
