package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"SeekBeat/config"
	"SeekBeat/core/audio"
	"SeekBeat/core/auth"
	"SeekBeat/core/search"
	"SeekBeat/core/stream"
	"SeekBeat/db"
	"SeekBeat/logger"
	"SeekBeat/repository"
	"SeekBeat/storage"
)

// App 持有服务运行期间的全部依赖
type App struct {
	Handler *APIHandler
	Store   storage.FileStore

	gdb *gorm.DB
	rdb *redis.Client
}

// NewApp wires providers, storage, registry and access gate from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	app.gdb, err = db.ConnectGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(app.gdb); err != nil {
		return nil, err
	}
	registry := repository.NewSongRegistry(repository.NewGormSongRepository(app.gdb), cfg.LANOwnerPort)

	gate, err := app.openGate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.SearchAttemptTimeout}
	primary := search.NewYouTubeAPI(cfg.YouTubeAPIURL, cfg.YouTubeAPIKey, cfg.YouTubeBulkAPIKey, httpClient)
	extractor := search.NewYtdlpExtractor(cfg.YtdlpPath)
	resolver := search.NewResolver(primary, extractor, search.NewDurationResolver(primary, cfg.DurationConcurrency), search.ResolverConfig{
		Attempts:       cfg.SearchRetries,
		AttemptTimeout: cfg.SearchAttemptTimeout,
		BulkFallback:   cfg.BulkScraperFallback,
	})
	bulk := search.NewBulkCoordinator(resolver, cfg.BulkMaxQueries, cfg.BulkConcurrency)
	if !primary.Configured(false) {
		logger.Warn("YOUTUBE_API_KEY 未配置, 搜索将直接使用 yt-dlp")
	}

	transcoder := audio.NewFFmpegTranscoder(cfg.FFmpegPath)
	pipeline := audio.NewPipeline(transcoder, transcoder, audio.NewTagger(nil), audio.PipelineConfig{
		TempDir: cfg.TempDir,
		Bitrate: cfg.AudioBitrate,
		Timeout: cfg.TranscodeTimeout,
	})
	ranges := stream.NewRangeServer(store, stream.NewOwnerFetcher(nil, store), registry)
	orchestrator := stream.NewOrchestrator(extractor, registry, gate, ranges, pipeline, store)

	app.Handler = NewAPIHandler(cfg, resolver, bulk, registry, orchestrator)
	ok = true
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	if cfg.MinioEnabled() {
		return storage.NewMinioStore(ctx, cfg)
	}
	return storage.NewLocalStore(cfg.SongStoragePath)
}

func (a *App) openGate(ctx context.Context, cfg *config.Config) (stream.AccessGate, error) {
	if !cfg.RedisEnabled() {
		if cfg.AccessCode == "" {
			logger.Warn("ACCESS_CODE 未配置, 本地歌曲将无法访问")
		}
		return auth.NewStaticGate(cfg.AccessCode), nil
	}
	rdb, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.rdb = rdb
	return auth.NewRedisGate(rdb, cfg.AccessCodeTTL), nil
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.gdb != nil {
		errs = append(errs, db.Close(a.gdb))
	}
	return errors.Join(errs...)
}

