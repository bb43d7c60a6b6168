package repository

import (
	"context"
	"net"
	"strconv"

	"SeekBeat/core/apperr"
	"SeekBeat/core/stream"
	"SeekBeat/model"
)

// LANMatch 局域网搜索结果
type LANMatch struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	DeviceIP string `json:"device_ip"`
	DeviceID string `json:"device_id"`
	SongID   string `json:"song_id"`
	Duration int    `json:"duration"`
}

// SongRegistry exposes the song tables to the stream layer.
type SongRegistry struct {
	repo      SongRepository
	ownerPort int
}

// NewSongRegistry ownerPort is the port LAN devices serve song files on.
func NewSongRegistry(repo SongRepository, ownerPort int) *SongRegistry {
	return &SongRegistry{repo: repo, ownerPort: ownerPort}
}

func (r *SongRegistry) LookupSong(ctx context.Context, id string) (*stream.Song, error) {
	song, err := r.repo.GetActiveSong(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "lookup song", err)
	}
	if song == nil || song.Device == nil {
		return nil, apperr.New(apperr.NotFound, "Song not found or device inactive")
	}
	return &stream.Song{
		ID:        song.SongID,
		DeviceID:  song.Device.DeviceID,
		Title:     song.Title,
		Artist:    song.Artist,
		Duration:  song.DurationSeconds,
		FilePath:  song.FilePath,
		OwnerAddr: r.ownerAddr(song.Device),
	}, nil
}

func (r *SongRegistry) UpdateFilePath(ctx context.Context, songID, key string) error {
	return r.repo.UpdateFilePath(ctx, songID, key)
}

// SearchLAN 在活跃设备的歌曲中按标题或歌手搜索
func (r *SongRegistry) SearchLAN(ctx context.Context, term string, limit int) ([]LANMatch, error) {
	songs, err := r.repo.SearchActive(ctx, term, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "search lan songs", err)
	}
	matches := make([]LANMatch, 0, len(songs))
	for _, s := range songs {
		m := LANMatch{
			Title:    s.Title,
			Artist:   s.Artist,
			SongID:   s.SongID,
			Duration: s.DurationSeconds,
		}
		if s.Device != nil {
			m.DeviceIP = s.Device.IPAddress
			m.DeviceID = s.Device.DeviceID
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *SongRegistry) ownerAddr(d *model.Device) string {
	if d.IPAddress == "" {
		return ""
	}
	return net.JoinHostPort(d.IPAddress, strconv.Itoa(r.ownerPort))
}
