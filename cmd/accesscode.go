package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"SeekBeat/core/auth"
	"SeekBeat/db"
)

var revokeCode bool

var accessCodeCmd = &cobra.Command{
	Use:   "accesscode",
	Short: "生成局域网会话访问码",
	Long:  `生成新的访问码并将其哈希保存到Redis中，旧的访问码随即失效。使用 --revoke 结束当前会话。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RedisEnabled() {
			return fmt.Errorf("REDIS_HOST 未配置, 请使用 ACCESS_CODE 环境变量设置静态访问码")
		}
		rdb, err := db.ConnectRedis(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()

		gate := auth.NewRedisGate(rdb, cfg.AccessCodeTTL)
		if revokeCode {
			if err := gate.Revoke(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("访问码已撤销")
			return nil
		}

		code, err := gate.Issue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("访问码: %s (有效期 %s)\n", code, cfg.AccessCodeTTL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accessCodeCmd)
	accessCodeCmd.Flags().BoolVar(&revokeCode, "revoke", false, "撤销当前访问码")
}
