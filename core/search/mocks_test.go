package search

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockPrimary struct {
	mock.Mock
}

func (m *MockPrimary) Configured(bulk bool) bool {
	return m.Called(bulk).Bool(0)
}

func (m *MockPrimary) Search(ctx context.Context, term string, limit int, bulk bool) ([]Hit, error) {
	args := m.Called(ctx, term, limit, bulk)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}

func (m *MockPrimary) Duration(ctx context.Context, videoID string, bulk bool) (int, error) {
	args := m.Called(ctx, videoID, bulk)
	return args.Int(0), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, target string) (*Info, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Info), args.Error(1)
}

func (m *MockExtractor) ExtractLink(ctx context.Context, link string) (*Info, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Info), args.Error(1)
}

func (m *MockExtractor) StreamInfo(ctx context.Context, link string) (*Info, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Info), args.Error(1)
}

func noBackoff(int) time.Duration { return 0 }

func floatPtr(f float64) *float64 { return &f }

func video(id, title string) *Info {
	return &Info{
		ID:         id,
		Title:      title,
		Duration:   floatPtr(200),
		Uploader:   "uploader " + id,
		Thumbnail:  "https://i.ytimg.com/vi/" + id + "/hq.jpg",
		WebpageURL: "https://www.youtube.com/watch?v=" + id,
		UploadDate: "20240101",
	}
}

func playlist(entries ...*Info) *Info {
	return &Info{Type: "playlist", Entries: entries}
}
