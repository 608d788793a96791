// Package mapper establishes bindings between local tasks and remote
// issues. It offers automatic binding by title similarity, an interactive
// candidate picker, direct linking, and Levenshtein-based assignee
// discovery. Binding always seeds both base snapshots from the current
// state of each side so an untouched pair classifies as in sync.
package mapper
