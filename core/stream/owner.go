package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"SeekBeat/core/apperr"
	"SeekBeat/logger"
	"SeekBeat/storage"
)

const ownerFetchTimeout = 2 * time.Minute

// OwnerFetcher pulls a song file from the LAN device that registered it.
type OwnerFetcher struct {
	client *http.Client
	store  storage.FileStore
}

func NewOwnerFetcher(client *http.Client, store storage.FileStore) *OwnerFetcher {
	if client == nil {
		client = &http.Client{Timeout: ownerFetchTimeout}
	}
	return &OwnerFetcher{client: client, store: store}
}

// SongKey is the store key a fetched song is saved under.
func SongKey(deviceID, songID string) string {
	return path.Join("device_"+deviceID, "song_"+songID+".mp3")
}

func ownerURL(addr, songID string) string {
	return (&url.URL{
		Scheme: "http",
		Host:   addr,
		Path:   "/api/lan/songs/" + url.PathEscape(songID) + "/file",
	}).String()
}

// Fetch downloads the song from its owner into the store and returns the
// key. Any failure is reported as not found.
func (f *OwnerFetcher) Fetch(ctx context.Context, t Target) (string, error) {
	src := ownerURL(t.OwnerAddr, t.SongID)
	logger.Info("从设备获取歌曲文件",
		logger.String("songId", t.SongID),
		logger.String("owner", t.OwnerAddr))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.NotFound, "File not found", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.NotFound, "File not found on owner device", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", apperr.Wrap(apperr.NotFound, "File not found on owner device",
			fmt.Errorf("owner %s returned status %d", t.OwnerAddr, resp.StatusCode))
	}

	key := SongKey(t.DeviceID, t.SongID)
	if err := f.store.Put(ctx, key, resp.Body, resp.ContentLength); err != nil {
		return "", apperr.Wrap(apperr.NotFound, "File not found on owner device", err)
	}
	return key, nil
}
