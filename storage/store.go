package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotExist 对象不存在
var ErrNotExist = errors.New("storage: object does not exist")

// Object is a readable, seekable stored file of known size.
type Object interface {
	io.ReadSeekCloser
	Size() int64
}

// FileStore 歌曲文件存储. Keys are slash-separated relative paths.
type FileStore interface {
	Open(ctx context.Context, key string) (Object, error)
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Exists(ctx context.Context, key string) bool
	// LocalPath returns a filesystem path for the key when the store is
	// backed by local disk, so the transcoder can read it directly.
	LocalPath(key string) (string, bool)
}

// LocalStore 本地磁盘存储, rooted at Root.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalStore{Root: root}, nil
}

// resolve maps a key inside Root. Absolute keys already under Root are
// accepted as is; anything escaping Root is rejected.
func (s *LocalStore) resolve(key string) (string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	p := key
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, filepath.FromSlash(key))
	}
	p = filepath.Clean(p)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: key %q escapes root", key)
	}
	return p, nil
}

type localObject struct {
	*os.File
	size int64
}

func (o localObject) Size() int64 { return o.size }

func (s *LocalStore) Open(ctx context.Context, key string) (Object, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ErrNotExist
	}
	return localObject{File: f, size: st.Size()}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	p, err := s.resolve(key)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func (s *LocalStore) LocalPath(key string) (string, bool) {
	p, err := s.resolve(key)
	if err != nil {
		return "", false
	}
	return p, true
}
