// Package conflictui detects field-level conflicts between the two sides
// of a mapping and resolves them, either automatically from a configured
// strategy or through an interactive field-by-field terminal session with
// preview-then-confirm semantics. The UI never mutates anything itself.
package conflictui
