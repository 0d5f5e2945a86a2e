package jsonstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, autoSave time.Duration) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Load(path, Options{AutoSave: autoSave})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

type recorder struct {
	mu     sync.Mutex
	values []json.RawMessage
}

func (r *recorder) listen(v json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]json.RawMessage(nil), r.values...)
}

func TestLoadCreatesFileAndDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "store.json")
	s, err := Load(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	_, ok := s.Get("todos")
	assert.False(t, ok)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path, Options{})
	assert.Error(t, err)
}

func TestLoadRejectsInaccessiblePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Load(filepath.Join(blocker, "store.json"), Options{})
	assert.Error(t, err)
}

func TestLoadReadsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	doc := `{
  "todos": [ {"id": 1, "text": "a", "done": false} ],
  "theme": "neon"
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Load(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	v, ok := s.Get("todos")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1,"text":"a","done":false}]`, string(v))
	assert.ElementsMatch(t, []string{"todos", "theme"}, s.Keys())
}

func TestSetNotifiesOnlyOnChange(t *testing.T) {
	s, _ := newTestStore(t, -1)
	var rec recorder
	s.OnKeyChange("todos", rec.listen)

	require.NoError(t, s.Set("todos", []int{1, 2}))
	require.NoError(t, s.Set("todos", []int{1, 2}))
	require.NoError(t, s.Set("other", "ignored"))
	require.NoError(t, s.Set("todos", []int{3}))

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, `[1,2]`, string(got[0]))
	assert.Equal(t, `[3]`, string(got[1]))
}

func TestMultipleListenersAndUnsubscribe(t *testing.T) {
	s, _ := newTestStore(t, -1)
	var a, b recorder
	unsubA := s.OnKeyChange("k", a.listen)
	s.OnKeyChange("k", b.listen)

	require.NoError(t, s.Set("k", 1))
	unsubA()
	unsubA()
	require.NoError(t, s.Set("k", 2))

	assert.Len(t, a.snapshot(), 1)
	assert.Len(t, b.snapshot(), 2)
}

func TestAutoSaveFlushesInBackground(t *testing.T) {
	s, path := newTestStore(t, 10*time.Millisecond)
	require.NoError(t, s.Set("todos", []string{"x"}))

	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var doc map[string]json.RawMessage
		if json.Unmarshal(b, &doc) != nil {
			return false
		}
		return string(doc["todos"]) == `["x"]`
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSaveWritesIndentedDocument(t *testing.T) {
	s, path := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", []map[string]any{{"id": 1, "text": "a", "done": false}}))
	require.NoError(t, s.Save())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "\n  \"todos\": [")
	assert.JSONEq(t, `{"todos":[{"id":1,"text":"a","done":false}]}`, string(b))
}

func TestSaveReplacesFileWithoutLeftovers(t *testing.T) {
	s, path := newTestStore(t, -1)
	for i := range 3 {
		require.NoError(t, s.Set("n", i))
		require.NoError(t, s.Save())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store.json", entries[0].Name())
	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`2`), doc["n"])
}

func TestReloadPicksUpExternalWriteAndNotifies(t *testing.T) {
	s, path := newTestStore(t, -1)
	var rec recorder
	s.OnKeyChange("todos", rec.listen)

	require.NoError(t, os.WriteFile(path, []byte(`{"todos": [1, 2, 3]}`), 0o644))
	require.NoError(t, s.Reload())

	v, ok := s.Get("todos")
	require.True(t, ok)
	assert.Equal(t, `[1,2,3]`, string(v))
	require.Len(t, rec.snapshot(), 1)

	// identical content with different formatting is not a change
	require.NoError(t, os.WriteFile(path, []byte("{\n  \"todos\": [1,2,3]\n}\n"), 0o644))
	require.NoError(t, s.Reload())
	assert.Len(t, rec.snapshot(), 1)
}

func TestReloadDiscardsUnflushedWrites(t *testing.T) {
	s, _ := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", "persisted"))
	require.NoError(t, s.Save())
	require.NoError(t, s.Set("todos", "pending"))

	require.NoError(t, s.Reload())
	v, _ := s.Get("todos")
	assert.Equal(t, `"persisted"`, string(v))
}

func TestReloadReportsRemovedKey(t *testing.T) {
	s, path := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", []int{1}))
	require.NoError(t, s.Save())

	var rec recorder
	s.OnKeyChange("todos", rec.listen)
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	require.NoError(t, s.Reload())

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	_, ok := s.Get("todos")
	assert.False(t, ok)
}

func TestReloadMissingFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", 1))
	require.NoError(t, s.Save())
	require.NoError(t, os.Remove(path))

	require.NoError(t, s.Reload())
	assert.Empty(t, s.Keys())
}

func TestReloadCorruptFileKeepsState(t *testing.T) {
	s, path := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", 1))
	require.NoError(t, s.Save())
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	assert.Error(t, s.Reload())
	v, ok := s.Get("todos")
	require.True(t, ok)
	assert.Equal(t, `1`, string(v))
}

func TestRoundTripAcrossInstances(t *testing.T) {
	s, path := newTestStore(t, -1)
	want := json.RawMessage(`[{"id":1,"text":"a","done":false},{"id":2,"text":"b","done":true}]`)
	require.NoError(t, s.Set("todos", want))
	require.NoError(t, s.Close())

	other, err := Load(path, Options{})
	require.NoError(t, err)
	defer other.Close()
	got, ok := other.Get("todos")
	require.True(t, ok)
	assert.Equal(t, string(want), string(got))
}

func TestDeleteNotifies(t *testing.T) {
	s, _ := newTestStore(t, -1)
	require.NoError(t, s.Set("k", 1))
	var rec recorder
	s.OnKeyChange("k", rec.listen)

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))
	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s, _ := newTestStore(t, -1)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Set("k", 1), ErrClosed)
	assert.ErrorIs(t, s.Reload(), ErrClosed)
	assert.ErrorIs(t, s.Save(), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestSetRejectsUnencodableValue(t *testing.T) {
	s, _ := newTestStore(t, -1)
	assert.Error(t, s.Set("k", make(chan int)))
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestReloadIfCleanKeepsUnflushedWrites(t *testing.T) {
	s, path := newTestStore(t, -1)
	require.NoError(t, s.Set("todos", "local"))
	require.NoError(t, os.WriteFile(path, []byte(`{"todos":"external"}`), 0o644))

	reloaded, err := s.ReloadIfClean()
	require.NoError(t, err)
	assert.False(t, reloaded)
	v, _ := s.Get("todos")
	assert.Equal(t, `"local"`, string(v))
	assert.True(t, s.Dirty())

	require.NoError(t, s.Save())
	require.NoError(t, os.WriteFile(path, []byte(`{"todos":"external"}`), 0o644))
	reloaded, err = s.ReloadIfClean()
	require.NoError(t, err)
	assert.True(t, reloaded)
	v, _ = s.Get("todos")
	assert.Equal(t, `"external"`, string(v))
}

func TestFailedAutoSaveIsDroppedAndReported(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "store.json")
	s, err := Load(path, Options{AutoSave: 5 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, s.Set("todos", "local"))

	// the failed flush no longer counts as pending, so a reload may run
	assert.Eventually(t, func() bool { return !s.Dirty() }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"todos":"external"}`), 0o644))
	reloaded, err := s.ReloadIfClean()
	require.NoError(t, err)
	assert.True(t, reloaded)
	v, _ := s.Get("todos")
	assert.Equal(t, `"external"`, string(v))

	// a reload clears the failure, so Close has nothing to report
	assert.NoError(t, s.Close())
}

func TestCloseReportsEarlierAutoSaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Load(filepath.Join(dir, "store.json"), Options{AutoSave: 5 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, s.Set("todos", "local"))
	require.Eventually(t, func() bool { return !s.Dirty() }, 2*time.Second, 5*time.Millisecond)

	assert.Error(t, s.Close())
}
