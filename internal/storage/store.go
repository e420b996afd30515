package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallkit/recall/internal/domain"
)

// Options tune the store's save behavior. Zero values get defaults.
type Options struct {
	Debounce        time.Duration // coalescing window for dirty marks
	MinSaveInterval time.Duration // rate limit between consecutive saves
	BackupInterval  time.Duration // minimum gap between ring backups
	BackupLimit     int           // ring size
	ReviewLogCap    int           // review log compaction threshold
	SaveRetries     int           // write attempts before SaveError
	RetryBase       time.Duration // first retry delay, doubled per attempt
	Logger          *slog.Logger
	Now             func() time.Time
}

func (o *Options) fillDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.MinSaveInterval <= 0 {
		o.MinSaveInterval = 10 * time.Second
	}
	if o.BackupInterval <= 0 {
		o.BackupInterval = 10 * time.Minute
	}
	if o.BackupLimit <= 0 {
		o.BackupLimit = 5
	}
	if o.ReviewLogCap <= 0 {
		o.ReviewLogCap = 10000
	}
	if o.SaveRetries <= 0 {
		o.SaveRetries = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 100 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// SaveError reports a write that exhausted its retries. The store stays
// dirty, so a later save can still succeed.
type SaveError struct {
	Attempts int
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("storage: save failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Store owns the in-memory document and keeps the backend in sync with it.
// Mutations run synchronously under the lock; only the write to the backend
// happens later, so reads always see the latest mutation.
type Store struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	timer  saveTimer
	saveMu sync.Mutex // serializes flushes

	mu           sync.Mutex
	doc          *Document
	backups      []BackupEntry
	dirty        bool
	lastSaved    []byte // primary blob as last persisted; pre-write backup source
	lastSaveAt   time.Time
	lastBackupAt time.Time
}

// New creates a store over the given backend. Call Load before use.
func New(backend Backend, opts Options) *Store {
	opts.fillDefaults()
	return &Store{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger,
		now:     opts.Now,
		doc:     DefaultDocument(),
	}
}

// Load reads the primary document and the backup ring. A missing document
// installs defaults; a malformed one is quarantined into the backup ring and
// repaired field by field. Load never fails on bad content, only on I/O.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.backend.Read(ctx, KeyBackups); err == nil {
		var backups []BackupEntry
		if jerr := json.Unmarshal(raw, &backups); jerr != nil {
			s.logger.Warn("backup ring unreadable, starting empty", "error", jerr)
		} else {
			s.backups = backups
		}
	} else if !errors.Is(err, ErrBlobNotFound) {
		return fmt.Errorf("loading backups: %w", err)
	}

	blob, err := s.backend.Read(ctx, KeyPrimary)
	if errors.Is(err, ErrBlobNotFound) {
		s.doc = DefaultDocument()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading primary document: %w", err)
	}

	doc, defaulted, err := decodeDocument(blob)
	if err != nil {
		s.logger.Warn("primary document unparseable, quarantining and installing defaults", "error", err)
		s.quarantineLocked(ctx, blob)
		s.doc = DefaultDocument()
		s.dirty = true
		return nil
	}
	if len(defaulted) > 0 {
		s.logger.Warn("primary document repaired, original quarantined", "fields", defaulted)
		s.quarantineLocked(ctx, blob)
		s.dirty = true
	}
	s.doc = doc
	s.lastSaved = blob
	return nil
}

// View runs fn with read access to the document. fn must not retain or
// mutate it.
func (s *Store) View(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Update runs fn with write access to the document, marks the store dirty
// and (re)arms the debounced save.
func (s *Store) Update(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
	s.markDirtyLocked()
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings
}

// ApplySettings replaces the stored settings when they differ from settings.
// An unchanged configuration leaves the store clean, so a plain restart does
// not force a save.
func (s *Store) ApplySettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Settings == settings {
		return
	}
	s.doc.Settings = settings
	s.markDirtyLocked()
}

// MarkDirty arms the debounced save without touching the document. Used
// when a caller has already mutated shared state through Update-provided
// pointers.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markDirtyLocked()
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	delay := s.opts.Debounce
	if wait := s.opts.MinSaveInterval - s.now().Sub(s.lastSaveAt); wait > delay {
		delay = wait
	}
	s.timer.Arm(delay, func() {
		if err := s.flush(context.Background()); err != nil {
			s.logger.Error("debounced save failed", "error", err)
		}
	})
}

// ForceSave cancels any pending debounced save and writes synchronously.
// Call on shutdown so no mutation is lost.
func (s *Store) ForceSave(ctx context.Context) error {
	s.timer.Cancel()
	return s.flush(ctx)
}

// flush serializes the current document and writes it with bounded retries.
// A throttled pre-write backup of the previously persisted snapshot is
// appended to the ring first.
func (s *Store) flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.compactReviewsLocked()

	data, err := json.Marshal(s.doc)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding primary document: %w", err)
	}

	var backupBlob []byte
	if s.lastSaved != nil && s.now().Sub(s.lastBackupAt) >= s.opts.BackupInterval {
		s.appendBackupLocked(s.lastSaved)
		backupBlob, _ = json.Marshal(s.backups)
	}
	s.dirty = false
	s.mu.Unlock()

	if backupBlob != nil {
		if err := s.backend.Write(ctx, KeyBackups, backupBlob); err != nil {
			s.logger.Warn("backup write failed", "error", err)
		}
	}

	if err := s.writeWithRetry(ctx, KeyPrimary, data); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		saveErr := &SaveError{Attempts: s.opts.SaveRetries, Err: err}
		s.logger.Error("primary document save failed", "attempts", saveErr.Attempts, "error", err)
		return saveErr
	}

	s.mu.Lock()
	s.lastSaved = data
	s.lastSaveAt = s.now()
	s.mu.Unlock()
	return nil
}

func (s *Store) writeWithRetry(ctx context.Context, key string, data []byte) error {
	var err error
	delay := s.opts.RetryBase
	for attempt := 1; attempt <= s.opts.SaveRetries; attempt++ {
		if err = s.backend.Write(ctx, key, data); err == nil {
			return nil
		}
		if attempt < s.opts.SaveRetries {
			s.logger.Warn("write attempt failed, retrying", "key", key, "attempt", attempt, "error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// appendBackupLocked pushes a snapshot onto the ring, dropping the oldest
// entry past the limit.
func (s *Store) appendBackupLocked(data []byte) {
	entry := BackupEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Data:      append([]byte(nil), data...),
	}
	s.backups = append(s.backups, entry)
	if over := len(s.backups) - s.opts.BackupLimit; over > 0 {
		s.backups = append([]BackupEntry(nil), s.backups[over:]...)
	}
	s.lastBackupAt = entry.Timestamp
}

// quarantineLocked preserves a rejected blob in the backup ring so repair
// never silently destroys data.
func (s *Store) quarantineLocked(ctx context.Context, blob []byte) {
	s.appendBackupLocked(blob)
	if data, err := json.Marshal(s.backups); err == nil {
		if werr := s.backend.Write(ctx, KeyBackups, data); werr != nil {
			s.logger.Warn("quarantine write failed", "error", werr)
		}
	}
}

// compactReviewsLocked bounds review-log growth: once the log is more than
// 10% over its cap, undone entries go first, then the oldest remaining
// entries are trimmed to the cap.
func (s *Store) compactReviewsLocked() {
	limit := s.opts.ReviewLogCap
	reviews := s.doc.Reviews
	if len(reviews) <= limit+limit/10 {
		return
	}

	kept := reviews[:0]
	for _, r := range reviews {
		if !r.Undone {
			kept = append(kept, r)
		}
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	s.doc.Reviews = append([]domain.ReviewLogEntry(nil), kept...)
	s.logger.Info("review log compacted", "kept", len(s.doc.Reviews))
}

// Backups returns a copy of the recovery ring, newest last.
func (s *Store) Backups() []BackupEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BackupEntry(nil), s.backups...)
}

// RestoreBackup replaces the in-memory document with the decoded content of
// the given backup entry and marks the store dirty.
func (s *Store) RestoreBackup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backups {
		if b.ID != id {
			continue
		}
		doc, defaulted, err := decodeDocument(b.Data)
		if err != nil {
			return fmt.Errorf("restoring backup %s: %w", id, err)
		}
		if len(defaulted) > 0 {
			s.logger.Warn("restored backup needed repair", "id", id, "fields", defaulted)
		}
		s.doc = doc
		s.markDirtyLocked()
		return nil
	}
	return fmt.Errorf("restoring backup %s: %w", id, ErrBlobNotFound)
}

// SaveSession persists the session-resume projection synchronously.
func (s *Store) SaveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session snapshot: %w", err)
	}
	if err := s.backend.Write(ctx, KeySession, data); err != nil {
		return fmt.Errorf("writing session snapshot: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session projection, or nil when none
// exists or it cannot be read.
func (s *Store) LoadSession(ctx context.Context) (*domain.SessionSnapshot, error) {
	raw, err := s.backend.Read(ctx, KeySession)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session snapshot: %w", err)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("session snapshot unreadable, discarding", "error", err)
		return nil, nil
	}
	return &snap, nil
}

// ClearSession removes the persisted session projection.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.backend.Delete(ctx, KeySession)
}

// Close stops the save timer, flushes any pending mutation and closes the
// backend.
func (s *Store) Close(ctx context.Context) error {
	s.timer.Cancel()
	flushErr := s.flush(ctx)
	closeErr := s.backend.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
