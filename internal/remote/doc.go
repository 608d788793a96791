// Package remote is the issue-tracker adapter. It owns a single long-lived
// MCP server subprocess speaking the tool protocol over stdio, performs the
// initialization handshake and readiness poll, validates and classifies
// tool responses, and exposes typed high-level wrappers for the Jira tools
// the engine uses. Transport selection covers an external server binary
// with an optional containerized fallback.
package remote
