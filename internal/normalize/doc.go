// Package normalize canonicalizes local tasks and remote issues into
// comparable payloads, computes the stable hashes that drive sync-state
// classification, and owns the codec for the engine's trailing description
// sections (acceptance criteria, implementation plan, implementation notes).
package normalize
