package frontmatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaskFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task-1.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func strp(s string) *string { return &s }

const sampleTask = `---
id: task-1
title: "Fix login: edge cases"
status: In Progress
labels: [auth, bug]
description: >-
  A folded
  description value
plan: |-
  literal line one
  literal line two
---

# Fix login

Body text stays untouched.
`

func TestUpdateAddsEngineKeys(t *testing.T) {
	path := writeTaskFile(t, sampleTask)

	require.NoError(t, Update(path, map[string]*string{
		KeyRemoteKey: strp("PROJ-1"),
		KeyRemoteURL: strp("https://jira.example.com/browse/PROJ-1"),
		KeySyncState: strp("in-sync"),
	}))

	values, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", values[KeyRemoteKey])
	assert.Equal(t, "https://jira.example.com/browse/PROJ-1", values[KeyRemoteURL])
	assert.Equal(t, "in-sync", values[KeySyncState])
}

func TestUpdatePreservesUnknownKeysByteEqual(t *testing.T) {
	path := writeTaskFile(t, sampleTask)

	require.NoError(t, Update(path, map[string]*string{KeyRemoteKey: strp("PROJ-1")}))
	content := readFile(t, path)

	for _, wanted := range []string{
		`title: "Fix login: edge cases"`,
		"labels: [auth, bug]",
		"description: >-\n  A folded\n  description value",
		"plan: |-\n  literal line one\n  literal line two",
	} {
		assert.Contains(t, content, wanted)
	}
}

func TestUpdateNeverRewritesBody(t *testing.T) {
	path := writeTaskFile(t, sampleTask)

	require.NoError(t, Update(path, map[string]*string{KeyRemoteKey: strp("PROJ-1")}))
	require.NoError(t, Update(path, map[string]*string{KeySyncState: strp("conflict")}))

	content := readFile(t, path)
	idx := strings.LastIndex(content, "---\n")
	require.Greater(t, idx, 0)
	assert.Equal(t, "\n# Fix login\n\nBody text stays untouched.\n", content[idx+len("---\n"):])
}

func TestUpdateReplacesAndRemoves(t *testing.T) {
	path := writeTaskFile(t, sampleTask)

	require.NoError(t, Update(path, map[string]*string{
		KeyRemoteKey: strp("PROJ-1"),
		KeySyncState: strp("needs-push"),
	}))
	require.NoError(t, Update(path, map[string]*string{
		KeyRemoteKey: strp("PROJ-2"),
		KeySyncState: nil,
	}))

	values, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-2", values[KeyRemoteKey])
	_, hasState := values[KeySyncState]
	assert.False(t, hasState)

	// Replacing must not duplicate the key.
	content := readFile(t, path)
	assert.Equal(t, 1, strings.Count(content, "remote_key:"))
}

func TestUpdateQuotesHazardousValues(t *testing.T) {
	path := writeTaskFile(t, sampleTask)

	require.NoError(t, Update(path, map[string]*string{
		KeyLastSync: strp("2026-08-24T10:30:00Z"),
	}))

	content := readFile(t, path)
	assert.Contains(t, content, `last_sync: "2026-08-24T10:30:00Z"`)

	values, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24T10:30:00Z", values[KeyLastSync])
}

func TestUpdateRejectsForeignKeys(t *testing.T) {
	path := writeTaskFile(t, sampleTask)
	err := Update(path, map[string]*string{"title": strp("hijacked")})
	assert.Error(t, err)
	assert.Contains(t, readFile(t, path), `title: "Fix login: edge cases"`)
}

func TestUpdateFileWithoutFrontmatter(t *testing.T) {
	path := writeTaskFile(t, "# Bare file\n\nno frontmatter here\n")

	require.NoError(t, Update(path, map[string]*string{KeyRemoteKey: strp("PROJ-7")}))

	content := readFile(t, path)
	assert.True(t, strings.HasPrefix(content, "---\nremote_key: PROJ-7\n---\n"))
	assert.Contains(t, content, "# Bare file\n\nno frontmatter here\n")
}

func TestReadMissingKeys(t *testing.T) {
	path := writeTaskFile(t, sampleTask)
	values, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, values)
}
