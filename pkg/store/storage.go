package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"xchain-swap/pkg/payment"
	"xchain-swap/pkg/swap"
)

const (
	DefaultStateFileName = ".xchain-swap-state.json"

	// SnapshotVersion is bumped whenever the file layout changes
	SnapshotVersion = 1
)

// Snapshot is the on-disk layout of the state file
type Snapshot struct {
	Version  int           `json:"version"`
	SavedAt  time.Time     `json:"saved_at"`
	Engine   swap.State    `json:"engine"`
	Payments payment.State `json:"payments"`
}

// Storage persists engine and payment state to a JSON file. Every access
// holds an advisory lock on "<file>.lock", so the daemon and one-shot CLI
// commands sharing a state file never interleave.
type Storage struct {
	filePath string
	lock     *flock.Flock
	mu       sync.Mutex
}

// NewStorage creates a storage backed by filePath, defaulting to a file in
// the home directory
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		filePath = filepath.Join(home, DefaultStateFileName)
	}
	return &Storage{
		filePath: filePath,
		lock:     flock.New(filePath + ".lock"),
	}, nil
}

// Path returns the state file path
func (s *Storage) Path() string {
	return s.filePath
}

// acquire takes the in-process mutex, then the file lock. The flock handle
// is shared by the goroutines of this process, so the mutex comes first.
func (s *Storage) acquire() (func(), error) {
	s.mu.Lock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "failed to create directory")
	}
	if err := s.lock.Lock(); err != nil {
		s.mu.Unlock()
		return nil, errors.Wrapf(err, "failed to lock %s", s.lock.Path())
	}

	return func() {
		s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

// Read loads the snapshot. A missing file yields an empty snapshot.
func (s *Storage) Read() (*Snapshot, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.read()
}

// Write replaces the state file atomically
func (s *Storage) Write(snap *Snapshot) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.write(snap)
}

// Load restores the overlay and the engine behind it from the state file.
// Both halves are validated before either is applied.
func (s *Storage) Load(overlay *payment.Overlay) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.load(overlay)
}

// Save captures the overlay and its engine in one critical section and
// writes them out
func (s *Storage) Save(overlay *payment.Overlay) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.save(overlay)
}

// Update runs fn as one read-modify-write against the state file: the latest
// state is loaded into the overlay and its engine, fn runs, and the result is written
// back, all under the file lock. The state is written even when fn fails,
// since a failed operation may still have moved a swap to Failed. fn must not
// call back into the storage.
func (s *Storage) Update(overlay *payment.Overlay, fn func() error) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := s.load(overlay); err != nil {
		return err
	}
	fnErr := fn()
	if err := s.save(overlay); err != nil {
		return err
	}
	return fnErr
}

func (s *Storage) load(overlay *payment.Overlay) error {
	snap, err := s.read()
	if err != nil {
		return err
	}
	if err := overlay.RestoreWithEngine(snap.Engine, snap.Payments); err != nil {
		return errors.Wrap(err, "failed to restore state")
	}
	return nil
}

func (s *Storage) save(overlay *payment.Overlay) error {
	engineState, paymentState := overlay.SnapshotWithEngine()
	return s.write(&Snapshot{
		SavedAt:  time.Now().UTC(),
		Engine:   engineState,
		Payments: paymentState,
	})
}

func (s *Storage) read() (*Snapshot, error) {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return &Snapshot{Version: SnapshotVersion}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}
	if snap.Version != SnapshotVersion {
		return nil, errors.Errorf("unsupported state version %d", snap.Version)
	}
	return &snap, nil
}

func (s *Storage) write(snap *Snapshot) error {
	snap.Version = SnapshotVersion
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	// write to a temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write state")
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}
