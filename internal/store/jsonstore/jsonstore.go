// Package jsonstore is a key-value store backed by a single JSON document.
//
// Writes land in memory first and are flushed to disk after a short
// debounce. Reload picks up changes made by other writers and notifies
// per-key listeners about every value that changed.
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultAutoSave is the flush debounce used when Options.AutoSave is unset.
const DefaultAutoSave = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("jsonstore: closed")

// Options tune a store opened with Load.
type Options struct {
	// AutoSave is the delay between a Set and the flush it schedules.
	// Zero selects DefaultAutoSave; a negative value disables autosave.
	AutoSave time.Duration
	Logger   *log.Logger
}

// Listener receives the new value of a watched key, or nil when the key
// no longer exists.
type Listener = func(value json.RawMessage)

type subscription struct {
	key string
	fn  Listener
}

// Store is a JSON document of top-level keys mapped to arbitrary values.
// It is safe for concurrent use.
type Store struct {
	path     string
	autoSave time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	data   map[string]json.RawMessage
	dirty  bool
	timer  *time.Timer
	closed bool
	// failed holds the last autosave error until a later write or reload
	// succeeds. Close reports it.
	failed error

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]subscription
}

// Load opens the document at path, creating it (and its parent
// directories) when missing. An unreadable or corrupt file is an error.
func Load(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonstore: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	autoSave := opts.AutoSave
	if autoSave == 0 {
		autoSave = DefaultAutoSave
	}
	s := &Store{
		path:     abs,
		autoSave: autoSave,
		logger:   logger.WithPrefix("store"),
		data:     map[string]json.RawMessage{},
		subs:     map[uint64]subscription{},
	}

	data, err := readDocument(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
		if err := writeDocument(abs, s.data); err != nil {
			return nil, err
		}
		s.logger.Debug("created store", "path", abs)
	case err != nil:
		return nil, err
	default:
		s.data = data
		s.logger.Debug("loaded store", "path", abs, "keys", len(data))
	}
	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the current in-memory value for key.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return cloneRaw(v), true
}

// Set stores value under key and schedules a flush. Listeners fire when
// the encoded value differs from the previous one. The flush happens in
// the background; its failure is logged, not returned.
func (s *Store) Set(key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("json marshal %q: %w", key, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	prev, existed := s.data[key]
	changed := !existed || !bytes.Equal(prev, raw)
	s.data[key] = raw
	s.dirty = true
	s.scheduleFlushLocked()
	s.mu.Unlock()

	if changed {
		s.notify(key, raw)
	}
	return nil
}

// Delete removes key, notifying listeners if it existed.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, existed := s.data[key]
	delete(s.data, key)
	if existed {
		s.dirty = true
		s.scheduleFlushLocked()
	}
	s.mu.Unlock()

	if existed {
		s.notify(key, nil)
	}
	return nil
}

// Dirty reports whether there are writes not yet flushed to disk.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Keys lists the keys currently held in memory.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Reload re-reads the backing file, replacing in-memory state including
// writes not yet flushed. A missing file reloads as an empty document.
// Listeners fire for every watched key whose value changed.
func (s *Store) Reload() error {
	_, err := s.reload(false)
	return err
}

// ReloadIfClean is Reload, except that it leaves the store untouched and
// reports false when there are unflushed writes. The check and the swap
// happen under one lock, so a concurrent Set is never discarded.
func (s *Store) ReloadIfClean() (bool, error) {
	return s.reload(true)
}

// reload reads the file under the lock so a flush cannot land between
// the read and the swap.
func (s *Store) reload(onlyIfClean bool) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if onlyIfClean && s.dirty {
		s.mu.Unlock()
		return false, nil
	}
	fresh, err := readDocument(s.path)
	if errors.Is(err, os.ErrNotExist) {
		fresh, err = map[string]json.RawMessage{}, nil
	}
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	old := s.data
	s.data = fresh
	s.dirty = false
	s.failed = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	for _, key := range s.watchedKeys() {
		before, hadBefore := old[key]
		after, hasAfter := fresh[key]
		if hadBefore == hasAfter && bytes.Equal(before, after) {
			continue
		}
		s.notify(key, after)
	}
	return true, nil
}

// Save flushes in-memory state to disk synchronously.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

// OnKeyChange registers fn for changes to key and returns a function that
// removes the registration. Calling it more than once is harmless.
func (s *Store) OnKeyChange(key string, fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{key: key, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Close cancels the pending autosave and flushes unsaved writes. If an
// earlier autosave failed and nothing has been written since, its error
// is returned.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	err := s.flushLocked()
	if err == nil && s.failed != nil {
		err = fmt.Errorf("autosave: %w", s.failed)
	}
	s.closed = true
	return err
}

func (s *Store) scheduleFlushLocked() {
	if s.autoSave < 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.autoSave, s.autoFlush)
}

func (s *Store) autoFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	if s.closed {
		return
	}
	if err := s.flushLocked(); err != nil {
		// The write is dropped: the file stays the source of truth and
		// the next reload brings memory back in line with it.
		s.logger.Warn("autosave failed", "path", s.path, "err", err)
		s.dirty = false
		s.failed = err
	}
}

func (s *Store) flushLocked() error {
	if !s.dirty {
		return nil
	}
	if err := writeDocument(s.path, s.data); err != nil {
		return err
	}
	s.dirty = false
	s.failed = nil
	return nil
}

func (s *Store) watchedKeys() []string {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	seen := map[string]bool{}
	var keys []string
	for _, sub := range s.subs {
		if !seen[sub.key] {
			seen[sub.key] = true
			keys = append(keys, sub.key)
		}
	}
	return keys
}

func (s *Store) notify(key string, value json.RawMessage) {
	s.subMu.Lock()
	var fns []Listener
	for _, sub := range s.subs {
		if sub.key == key {
			fns = append(fns, sub.fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(cloneRaw(value))
	}
}
