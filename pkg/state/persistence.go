package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
)

const (
	stateDir  = "state"
	stateFile = "dictionary.bin"
	lockFile  = ".lock"

	dirPerm  = 0o700
	filePerm = 0o600
)

var ErrLocked = errors.New("state directory is in use by another process")

// Store persists snapshots under <dir>/state. It holds an exclusive lock on
// the directory until Close so two processes never interleave writes.
type Store struct {
	lock     *os.File
	filePath string
	mu       sync.Mutex
}

// FilePath returns where the snapshot of the replica rooted at dir lives.
func FilePath(dir string) string {
	return filepath.Join(dir, stateDir, stateFile)
}

func Open(dir string) (*Store, error) {
	sd := filepath.Join(dir, stateDir)
	if err := os.MkdirAll(sd, dirPerm); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lf, err := os.OpenFile(filepath.Join(sd, lockFile), os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open state lock: %w", err)
	}

	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = lf.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock state: %w", err)
	}

	return &Store{
		lock:     lf,
		filePath: FilePath(dir),
	}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.filePath
}

// Load returns the persisted snapshot, or an empty one if nothing was saved yet.
func (s *Store) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ReadFile(s.filePath)
}

func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := renameio.WriteFile(s.filePath, Marshal(snap), filePerm); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	if err := unix.Flock(int(s.lock.Fd()), unix.LOCK_UN); err != nil {
		_ = s.lock.Close()
		return fmt.Errorf("unlock state: %w", err)
	}
	return s.lock.Close()
}

// ReadFile decodes a snapshot file without taking the directory lock, so a
// stopped or running replica's state can be read for merging elsewhere.
func ReadFile(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read state file: %w", err)
	}

	snap, err := Unmarshal(b)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}
