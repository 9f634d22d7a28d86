// Package filestore persists client state in a YAML file so a session
// survives process restarts.
package filestore

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var _ storage.Store = (*FileStore)(nil)

// FileStore keeps an in-memory copy of the file and rewrites the whole file on
// every mutation. Writes go to a temp file first and are renamed into place.
type FileStore struct {
	path   string
	values map[string]string
	lock   sync.RWMutex
}

// Open loads path, creating an empty state when the file does not exist yet.
func Open(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filestore.Open] path is empty")
	}

	fsStore := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fsStore, nil
		}
		return nil, errors.Wrapf(err, "[filestore.Open] read %s", path)
	}
	if len(data) == 0 {
		return fsStore, nil
	}
	if err := yaml.Unmarshal(data, &fsStore.values); err != nil {
		return nil, errors.Wrapf(err, "[filestore.Open] parse %s", path)
	}
	if fsStore.values == nil {
		fsStore.values = make(map[string]string)
	}
	return fsStore, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	next := maps.Clone(s.values)
	maps.Copy(next, values)
	return s.commit(next)
}

func (s *FileStore) Clear(keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	next := maps.Clone(s.values)
	for _, k := range keys {
		delete(next, k)
	}
	return s.commit(next)
}

// commit writes next to disk and only then swaps it in. Caller holds the lock.
func (s *FileStore) commit(next map[string]string) error {
	data, err := yaml.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "[filestore.commit] encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "[filestore.commit] create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return errors.Wrap(err, "[filestore.commit] temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.commit] chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.commit] write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore.commit] close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "[filestore.commit] rename")
	}

	s.values = next
	return nil
}
