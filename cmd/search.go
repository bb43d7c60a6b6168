package cmd

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"SeekBeat/core/query"
	"SeekBeat/core/search"
)

var (
	searchMax    int
	searchOffset int
	searchBulk   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query> [query...]",
	Short: "在命令行中搜索",
	Long:  `使用与HTTP接口相同的解析流程搜索，结果以JSON输出。使用 --bulk 时每个参数作为一个独立查询。`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: cfg.SearchAttemptTimeout}
		primary := search.NewYouTubeAPI(cfg.YouTubeAPIURL, cfg.YouTubeAPIKey, cfg.YouTubeBulkAPIKey, client)
		resolver := search.NewResolver(primary, search.NewYtdlpExtractor(cfg.YtdlpPath),
			search.NewDurationResolver(primary, cfg.DurationConcurrency),
			search.ResolverConfig{
				Attempts:       cfg.SearchRetries,
				AttemptTimeout: cfg.SearchAttemptTimeout,
				BulkFallback:   cfg.BulkScraperFallback,
			})
		classifier := query.NewClassifier(cfg.MaxQueryLength)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if searchBulk {
			queries := make([]query.Query, 0, len(args))
			for _, a := range args {
				queries = append(queries, classifier.Classify(a))
			}
			bulk := search.NewBulkCoordinator(resolver, cfg.BulkMaxQueries, cfg.BulkConcurrency)
			return enc.Encode(bulk.ResolveMany(cmd.Context(), queries, searchMax))
		}

		results, err := resolver.Resolve(cmd.Context(), classifier.Classify(strings.Join(args, " ")), search.Options{
			MaxResults: searchMax,
			Offset:     searchOffset,
		})
		if err != nil {
			return err
		}
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchMax, "max-results", "n", search.DefaultMaxResults, "每个查询返回的结果数")
	searchCmd.Flags().IntVarP(&searchOffset, "offset", "o", 0, "跳过的结果数")
	searchCmd.Flags().BoolVarP(&searchBulk, "bulk", "b", false, "批量模式")

	searchCmd.Example = `  # 搜索关键词
  seekbeat search "sea shanty"

  # 直接解析链接
  seekbeat search https://youtu.be/V_N1MavsGJE

  # 批量搜索
  seekbeat search -b "wellerman" "drunken sailor"`
}
