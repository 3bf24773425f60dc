// Package dedup decides whether an incoming code change proposal is novel
// or a duplicate of prior work.
//
// Three checks run in strict order, short-circuiting on the first match:
//
//  1. Exact: identical content fingerprint for the same (aiType, filePath)
//  2. Semantic: identical normalized-structure fingerprint, confirmed by
//     line similarity above the semantic threshold
//  3. Similar: first recent proposal above the similarity threshold,
//     scanned newest-first within the lookback window
//
// The engine is read-only against the proposal store and never errors on
// well-formed input; store failures propagate to the caller.
package dedup
