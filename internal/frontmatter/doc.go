// Package frontmatter writes the engine's metadata block into local task
// files. It is the single direct task-file write the engine performs, and
// it is deliberately narrow: four owned keys, byte-preservation of every
// other frontmatter entry, and never a body rewrite. The metadata is an
// index into the mapping store, not the source of truth.
package frontmatter
