package frontmatter

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys owned by the sync engine. The writer never touches anything else,
// and the rest of the frontmatter is preserved byte-for-byte.
const (
	KeyRemoteKey = "remote_key"
	KeyRemoteURL = "remote_url"
	KeyLastSync  = "last_sync"
	KeySyncState = "sync_state"
)

var ownedKeys = map[string]bool{
	KeyRemoteKey: true,
	KeyRemoteURL: true,
	KeyLastSync:  true,
	KeySyncState: true,
}

const delimiter = "---"

// Update rewrites the engine-owned keys of a task file's frontmatter block.
// A nil value in set removes the key; keys absent from set are left alone.
// The body below the second delimiter is never rewritten. Files without a
// frontmatter block get one prepended.
func Update(path string, set map[string]*string) error {
	for key := range set {
		if !ownedKeys[key] {
			return fmt.Errorf("refusing to write non-engine frontmatter key %q", key)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading task file %s: %w", path, err)
	}
	content := string(raw)

	fmLines, body, hasBlock := splitFrontmatter(content)
	var kept []string
	existing := map[string]bool{}
	if hasBlock {
		for _, group := range groupTopLevelKeys(fmLines) {
			if ownedKeys[group.key] {
				existing[group.key] = true
				if v, touched := set[group.key]; touched {
					if v != nil {
						kept = append(kept, serializeEntry(group.key, *v))
					}
					// nil removes the key
					continue
				}
			}
			kept = append(kept, group.lines...)
		}
	}
	// Engine keys that were not present yet are appended at the end of the
	// block, in a fixed order so repeated writes are stable.
	for _, key := range []string{KeyRemoteKey, KeyRemoteURL, KeyLastSync, KeySyncState} {
		v, touched := set[key]
		if !touched || existing[key] || v == nil {
			continue
		}
		kept = append(kept, serializeEntry(key, *v))
	}

	var out strings.Builder
	out.WriteString(delimiter + "\n")
	for _, line := range kept {
		out.WriteString(line + "\n")
	}
	out.WriteString(delimiter + "\n")
	out.WriteString(body)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// Read returns the engine-owned key values present in a task file's
// frontmatter. Missing keys are simply absent from the result.
func Read(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}
	fmLines, _, hasBlock := splitFrontmatter(string(raw))
	values := map[string]string{}
	if !hasBlock {
		return values, nil
	}
	for _, group := range groupTopLevelKeys(fmLines) {
		if !ownedKeys[group.key] {
			continue
		}
		var doc map[string]string
		if err := yaml.Unmarshal([]byte(strings.Join(group.lines, "\n")), &doc); err != nil {
			return nil, fmt.Errorf("parsing frontmatter key %s in %s: %w", group.key, path, err)
		}
		values[group.key] = doc[group.key]
	}
	return values, nil
}

// splitFrontmatter separates the frontmatter block (between the first and
// second top-of-file delimiters) from the body. The returned body includes
// everything after the closing delimiter line, untouched.
func splitFrontmatter(content string) (fmLines []string, body string, ok bool) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return nil, content, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			for _, l := range lines[1:i] {
				fmLines = append(fmLines, strings.TrimRight(l, "\r\n"))
			}
			return fmLines, strings.Join(lines[i+1:], ""), true
		}
	}
	return nil, content, false
}

// keyGroup is one top-level frontmatter entry: its key (empty for leading
// comments) and the exact lines that make it up, including continuation
// lines of folded/literal scalars, nested maps and multi-line flow arrays.
type keyGroup struct {
	key   string
	lines []string
}

// groupTopLevelKeys splits frontmatter lines into per-key groups. A new
// group starts at any unindented `key:` line; everything else (indented
// continuations, blank lines, comments) sticks to the current group, which
// is what makes unknown keys round-trip byte-equal.
func groupTopLevelKeys(fmLines []string) []keyGroup {
	var groups []keyGroup
	current := keyGroup{}
	flush := func() {
		if current.key != "" || len(current.lines) > 0 {
			groups = append(groups, current)
		}
		current = keyGroup{}
	}
	for _, line := range fmLines {
		if key, isKey := topLevelKey(line); isKey {
			flush()
			current.key = key
		}
		current.lines = append(current.lines, line)
	}
	flush()
	return groups
}

// topLevelKey extracts the key of an unindented `key:` line. Quoted keys
// and comment lines are not produced by the task CLI's frontmatter, so a
// bare scan is sufficient; anything unrecognized is treated as a
// continuation and preserved.
func topLevelKey(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
		return "", false
	}
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", false
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", false
	}
	return key, true
}

// serializeEntry renders one owned key/value line, quoting values that
// would not survive a YAML round-trip as plain scalars.
func serializeEntry(key, value string) string {
	return key + ": " + quoteIfNeeded(value)
}

func quoteIfNeeded(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, ":[]{}#&*!|>'\"\n") ||
		strings.HasPrefix(value, "-") || strings.HasPrefix(value, "?") ||
		value != strings.TrimSpace(value) {
		return strconv.Quote(value)
	}
	return value
}
