package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func announceCmd() *cobra.Command {
	var (
		userIDs   []string
		title     string
		message   string
		actionURL string
	)

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "システムアナウンスを一括送信する",
		Long: `複数ユーザーにシステムアナウンスを一括送信する。管理者のJWTが必要。

使用例:
  notifyctl announce --users u-1,u-2,u-3 --title "メンテナンス" --message "本日22時から"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"user_ids": userIDs,
				"title":    title,
				"message":  message,
			}
			if actionURL != "" {
				body["action_url"] = actionURL
			}

			var result json.RawMessage
			if err := newAPIClient().PostJSON(context.Background(), "/api/v1/admin/notifications/announce", body, &result); err != nil {
				return fmt.Errorf("アナウンスの送信に失敗: %w", err)
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringSliceVar(&userIDs, "users", nil, "送信先のユーザーID（カンマ区切り）")
	cmd.Flags().StringVar(&title, "title", "", "アナウンスのタイトル")
	cmd.Flags().StringVar(&message, "message", "", "アナウンスの本文")
	cmd.Flags().StringVar(&actionURL, "action-url", "", "クライアントの遷移先URL")
	cmd.MarkFlagRequired("users")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("message")

	return cmd
}
