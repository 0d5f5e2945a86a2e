package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
)

// isolate keeps host config files and TADA_* variables out of the run and
// returns a store path inside a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{"TADA_STORE", "TADA_POLL_INTERVAL", "TADA_AUTOSAVE", "TADA_LOG_LEVEL", "TADA_LOG_FORMAT", "TADA_LOG_FILE", "TADA_THEME"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return filepath.Join(dir, "data", "store.json")
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Streams{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &errOut,
	})
	return code, out.String(), errOut.String()
}

func listJSON(t *testing.T, store string) model.List {
	t.Helper()
	code, out, errOut := run(t, "", "ls", "--json", "--store", store)
	require.Equal(t, ExitOK, code, errOut)
	var l model.List
	require.NoError(t, json.Unmarshal([]byte(out), &l))
	return l
}

func TestOneShotCommands(t *testing.T) {
	store := isolate(t)

	code, out, _ := run(t, "", "add", "--store", store, "buy", "milk")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, `added "buy milk"`)

	time.Sleep(2 * time.Millisecond)
	code, _, _ = run(t, "", "add", "--store", store, "walk the dog")
	require.Equal(t, ExitOK, code)

	l := listJSON(t, store)
	require.Len(t, l, 2)
	assert.Equal(t, "buy milk", l[0].Text)
	assert.Equal(t, "walk the dog", l[1].Text)
	assert.False(t, l[0].Done)

	code, out, _ = run(t, "", "done", "1", "--store", store)
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "marked done")
	assert.True(t, listJSON(t, store)[0].Done)

	code, _, _ = run(t, "", "edit", "--store", store, "2", "walk", "the", "cat")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "walk the cat", listJSON(t, store)[1].Text)

	code, _, _ = run(t, "", "rm", "1", "--store", store)
	require.Equal(t, ExitOK, code)
	l = listJSON(t, store)
	require.Len(t, l, 1)
	assert.Equal(t, "walk the cat", l[0].Text)

	b, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"todos"`)
}

func TestListRendering(t *testing.T) {
	store := isolate(t)
	code, _, _ := run(t, "", "add", "--store", store, "buy milk")
	require.Equal(t, ExitOK, code)

	code, out, _ := run(t, "", "ls", "--group", "--theme", "mono", "--store", store)
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "[ ] buy milk")
}

func TestEmptyStoreListsNothing(t *testing.T) {
	store := isolate(t)
	assert.Empty(t, listJSON(t, store))

	_, err := os.Stat(store)
	assert.NoError(t, err, "store file is created on first run")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"bogus"}},
		{"unknown flag", []string{"ls", "--nope"}},
		{"add without text", []string{"add"}},
		{"add blank text", []string{"add", "  "}},
		{"done without index", []string{"done"}},
		{"done not a number", []string{"done", "x"}},
		{"done out of range", []string{"done", "5"}},
		{"rm zero", []string{"rm", "0"}},
		{"edit without text", []string{"edit", "1"}},
		{"unknown theme", []string{"ls", "--theme", "plaid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := isolate(t)
			code, _, errOut := run(t, "", append(tt.args, "--store", store)...)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, errOut, "tada --help")
		})
	}
}

func TestViewRequiresAutoSave(t *testing.T) {
	store := isolate(t)
	t.Setenv("TADA_AUTOSAVE", "-1ms")

	code, _, errOut := run(t, "", "ui", "--store", store)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "autosave must be enabled")

	code, _, _ = run(t, "", "add", "--store", store, "still fine")
	assert.Equal(t, ExitOK, code)
}

func TestStoreFailureExitsOne(t *testing.T) {
	dir := filepath.Dir(isolate(t))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	code, _, errOut := run(t, "", "ls", "--store", filepath.Join(blocker, "store.json"))
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "open store")
}

func TestCorruptStoreExitsOne(t *testing.T) {
	store := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store), 0o755))
	require.NoError(t, os.WriteFile(store, []byte("{not json"), 0o644))

	code, _, _ := run(t, "", "add", "--store", store, "x")
	assert.Equal(t, ExitFailure, code)

	b, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(b))
}

func TestStoreFromEnvironment(t *testing.T) {
	store := isolate(t)
	t.Setenv("TADA_STORE", store)

	code, _, _ := run(t, "", "add", "from env")
	require.Equal(t, ExitOK, code)

	l := listJSON(t, store)
	require.Len(t, l, 1)
	assert.Equal(t, "from env", l[0].Text)
}

func TestMCPOverStdio(t *testing.T) {
	store := isolate(t)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"cli-test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"add_todo","arguments":{"text":"from a tool"}}}`,
	}, "\n") + "\n"

	code, out, errOut := run(t, in, "mcp", "--store", store)
	require.Equal(t, ExitOK, code, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"protocolVersion"`)
	assert.Contains(t, lines[1], "from a tool")

	l := listJSON(t, store)
	require.Len(t, l, 1)
	assert.Equal(t, "from a tool", l[0].Text)
}

func TestVersion(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version, Commit = "v0.3.0", "48cae1d7a3b2c1d0e9f8"
	code, out, _ := run(t, "", "version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "tada v0.3.0 (48cae1d)\n", out)
}

func TestShortCommit(t *testing.T) {
	tests := []struct{ in, want string }{
		{"48cae1d7a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d8", "48cae1d"},
		{"48cae1d", "48cae1d"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortCommit(tt.in), tt.in)
	}
}
