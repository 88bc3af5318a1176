// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	payload := json.RawMessage(`[{"name":"user_entrypoint","startInk":100,"endInk":0}]`)

	require.NoError(t, store.Put("http://localhost:8547", "0xaa", "stylusTracer", payload))

	got, err := store.Get("http://localhost:8547", "0xaa", "stylusTracer")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_MissReturnsNilNil(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get("http://localhost:8547", "0xmissing", "stylusTracer")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_KeyIncludesEndpointAndTracer(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("http://a:8547", "0xaa", "stylusTracer", json.RawMessage(`["a"]`)))
	require.NoError(t, store.Put("http://b:8547", "0xaa", "stylusTracer", json.RawMessage(`["b"]`)))
	require.NoError(t, store.Put("http://a:8547", "0xaa", "otherTracer", json.RawMessage(`["c"]`)))

	got, err := store.Get("http://b:8547", "0xaa", "stylusTracer")
	require.NoError(t, err)
	assert.Equal(t, `["b"]`, string(got))

	got, err = store.Get("http://a:8547", "0xaa", "otherTracer")
	require.NoError(t, err)
	assert.Equal(t, `["c"]`, string(got))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_PutReplacesExistingEntry(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("u", "0xaa", "stylusTracer", json.RawMessage(`["old"]`)))
	require.NoError(t, store.Put("u", "0xaa", "stylusTracer", json.RawMessage(`["new"]`)))

	got, err := store.Get("u", "0xaa", "stylusTracer")
	require.NoError(t, err)
	assert.Equal(t, `["new"]`, string(got))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Flush(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("u", "0xaa", "stylusTracer", json.RawMessage(`[]`)))
	require.NoError(t, store.Put("u", "0xbb", "stylusTracer", json.RawMessage(`[]`)))
	require.NoError(t, store.Flush())

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, "traces.db"))
	assert.NoError(t, err)
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("u", "0xaa", "stylusTracer", json.RawMessage(`["kept"]`)))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get("u", "0xaa", "stylusTracer")
	require.NoError(t, err)
	assert.Equal(t, `["kept"]`, string(got))
}
