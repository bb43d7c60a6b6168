package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"SeekBeat/config"
	"SeekBeat/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "seekbeat",
	Short: "SeekBeat 音乐搜索与流媒体服务",
	Long:  `SeekBeat 搜索 YouTube 音频, 转码剪辑后以流的形式返回, 并可播放局域网设备共享的歌曲。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var logFile string
		if cfg.LogDir != "" {
			logFile = filepath.Join(cfg.LogDir, "seekbeat.log")
		}
		return logger.InitLogger(logger.Config{
			Level:      cfg.LogLevel,
			OutputPath: logFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
			Console:    cfg.IsDesktop(),
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
