// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PlainRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileStore(path)

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.Save("abc.def"))
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Clear())
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	// Clearing twice is fine.
	require.NoError(t, s.Clear())
}

func TestFileStore_SaveEmptyClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileStore(path)
	require.NoError(t, s.Save("x"))
	require.NoError(t, s.Save(""))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileStore(path, WithPassphrase("hunter2"), WithIterations(1000))
	require.True(t, s.Encrypted())

	require.NoError(t, s.Save("secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), EncryptedPrefix))
	assert.NotContains(t, string(raw), "secret-token")

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", tok)

	wrong := NewFileStore(path, WithPassphrase("nope"), WithIterations(1000))
	_, err = wrong.Load()
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	none := NewFileStore(path)
	_, err = none.Load()
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestFileStore_CorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("ENC:!!notbase64"), 0600))

	_, err := NewFileStore(path, WithPassphrase("p"), WithIterations(1000)).Load()
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("t1")
	tok, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "t1", tok)
	require.NoError(t, m.Clear())
	tok, _ = m.Load()
	assert.Empty(t, tok)
}

func TestFileStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileStore(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	require.NoError(t, s.Watch(ctx, 20*time.Millisecond, func() { fired.Add(1) }))

	other := NewFileStore(path)
	require.NoError(t, other.Save("from-another-process"))

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := fired.Load()
	require.NoError(t, other.Clear())
	require.Eventually(t, func() bool { return fired.Load() > before }, 2*time.Second, 10*time.Millisecond)
}
