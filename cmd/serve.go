package cmd

import (
	"github.com/spf13/cobra"

	"SeekBeat/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动SeekBeat服务器",
	Long:  `启动SeekBeat的HTTP服务器，提供搜索、批量搜索、局域网搜索和音频流接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
