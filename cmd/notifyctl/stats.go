package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "通知全体の統計情報を表示する",
		Long: `通知全体の件数・未読件数・既読率・タイプ別内訳を表示する。管理者のJWTが必要。

使用例:
  notifyctl stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result json.RawMessage
			if err := newAPIClient().GetJSON(context.Background(), "/api/v1/admin/notifications/stats", &result); err != nil {
				return fmt.Errorf("統計情報の取得に失敗: %w", err)
			}
			return printJSON(result)
		},
	}
}
