package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var (
		userID    string
		typ       string
		title     string
		message   string
		priority  string
		actionURL string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知を1件作成する",
		Long: `指定したユーザーに通知を1件作成する。

対象ユーザーが接続中であればリアルタイムでも配信される。

使用例:
  notifyctl send --user u-1 --type system_announcement --title "お知らせ" --message "本文"
  notifyctl send --user u-1 --type reminder --title "リマインド" --message "本文" --priority high`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"user_id": userID,
				"type":    typ,
				"title":   title,
				"message": message,
			}
			if priority != "" {
				body["priority"] = priority
			}
			if actionURL != "" {
				body["action_url"] = actionURL
			}

			var result json.RawMessage
			if err := newAPIClient().PostJSON(context.Background(), "/api/v1/internal/notifications", body, &result); err != nil {
				return fmt.Errorf("通知の作成に失敗: %w", err)
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "通知先のユーザーID")
	cmd.Flags().StringVar(&typ, "type", "", "通知タイプ")
	cmd.Flags().StringVar(&title, "title", "", "通知のタイトル")
	cmd.Flags().StringVar(&message, "message", "", "通知メッセージ")
	cmd.Flags().StringVar(&priority, "priority", "", "優先度 (low / medium / high / urgent)")
	cmd.Flags().StringVar(&actionURL, "action-url", "", "クライアントの遷移先URL")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("message")

	return cmd
}

// printJSON はレスポンスを整形して標準出力に書き出す。
func printJSON(raw json.RawMessage) error {
	var buf map[string]any
	if err := json.Unmarshal(raw, &buf); err != nil {
		// オブジェクトでないレスポンスはそのまま出力する
		fmt.Println(string(raw))
		return nil
	}
	out, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
