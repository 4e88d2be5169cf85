package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "既読かつ古い通知を削除する",
		Long: `指定日数より古い既読通知を削除する。未読の通知は削除されない。管理者のJWTが必要。

使用例:
  notifyctl cleanup --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"days_old": days}

			var result json.RawMessage
			if err := newAPIClient().PostJSON(context.Background(), "/api/v1/admin/notifications/cleanup", body, &result); err != nil {
				return fmt.Errorf("古い通知の削除に失敗: %w", err)
			}
			return printJSON(result)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "保持日数（これより古い既読通知を削除）")

	return cmd
}
