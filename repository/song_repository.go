package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"SeekBeat/model"
)

// SongRepository 歌曲与设备数据访问接口
type SongRepository interface {
	// GetActiveSong returns the song and its device, only when the device is
	// still active. Missing rows yield (nil, nil).
	GetActiveSong(ctx context.Context, songID string) (*model.Song, error)
	UpdateFilePath(ctx context.Context, songID, path string) error
	// SearchActive matches title or artist, case-insensitively, over songs
	// of active devices that have an IP address.
	SearchActive(ctx context.Context, term string, limit int) ([]*model.Song, error)

	CreateDevice(ctx context.Context, device *model.Device) error
	CreateSong(ctx context.Context, song *model.Song) error
}

// gormSongRepository GORM 实现
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) GetActiveSong(ctx context.Context, songID string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).
		Joins("Device").
		Where("songs.song_id = ? AND Device.is_active = ?", songID, true).
		First(&song).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

func (r *gormSongRepository) UpdateFilePath(ctx context.Context, songID, path string) error {
	return r.db.WithContext(ctx).Model(&model.Song{}).
		Where("song_id = ?", songID).
		Updates(map[string]interface{}{
			"file_path":     path,
			"file_uploaded": true,
		}).Error
}

func (r *gormSongRepository) SearchActive(ctx context.Context, term string, limit int) ([]*model.Song, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Joins("Device").
		Where("Device.is_active = ? AND Device.ip_address <> ''", true).
		Where("LOWER(songs.title) LIKE ? ESCAPE '!' OR LOWER(songs.artist) LIKE ? ESCAPE '!'", pattern, pattern).
		Order("songs.title").
		Limit(limit).
		Find(&songs).Error
	return songs, err
}

// likeEscaper makes user input match literally under ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *gormSongRepository) CreateDevice(ctx context.Context, device *model.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *gormSongRepository) CreateSong(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Create(song).Error
}
