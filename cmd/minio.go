package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"SeekBeat/storage"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的歌曲文件，支持列出文件、查看统计信息、删除目录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.MinioEnabled() {
			return fmt.Errorf("MINIO_ENDPOINT 未配置")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		if minioDelete {
			n, err := store.DeletePrefix(cmd.Context(), minioPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("成功删除目录 %s 及其下的 %d 个文件\n", minioPrefix, n)
			return nil
		}

		objects, stats, err := store.List(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}
		if !minioStats {
			for _, obj := range objects {
				fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
			}
		}
		fmt.Printf("\n共 %d 个文件, 总大小 %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 列出所有文件
  seekbeat minio

  # 按设备列出歌曲
  seekbeat minio -p "device_42/"

  # 显示存储桶统计信息
  seekbeat minio -s

  # 删除目录及其下的所有文件
  seekbeat minio -d -p "device_42/"`
}
