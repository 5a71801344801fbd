// Package image acquires the optional disk image a flash campaign writes
// to the device's raw-storage target.
//
// # Overview
//
// An image is identified by a Selector (board, image type, distribution,
// variant). The archive filename is fully determined by the selector plus
// a release tag, so the download's cache identity is computed before any
// byte is fetched.
//
// Acquisition runs three steps:
//
//  1. Cache lookup: a single-slot cache holds the last compressed download
//     and an identity marker. A hit skips the network entirely.
//  2. Fetch: the xz archive is streamed to disk, into the cache slot when
//     caching is enabled, with download progress reported against the
//     server's content length.
//  3. Extract: the archive is streamed through an xz decoder into a
//     temporary staging file, chunk by chunk.
//
// The returned staging file belongs to the caller; the compressed download
// survives only as the cache slot.
//
// # Cache Integrity
//
// A cache entry is valid only while the identity marker matches and the
// slot file exists, is readable and has nonzero size. Any violation is
// self-healing: the next lookup clears the marker and reports a miss. A
// failed fetch removes the partial slot so it can never look like a valid
// entry.
package image
