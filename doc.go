// Package readmostly provides a concurrent shared-ownership pointer for
// values that are read far more often than they are replaced, such as
// configuration or routing tables.
//
// Properties:
//   - readers never block each other or the writer; the read fast paths are
//     lock-free and O(1)
//   - a single logical writer atomically replaces the held value; Replace is
//     linearizable against every read
//   - the superseded value is torn down exactly once, synchronously, as soon
//     as no handle or reader cache can still observe it. A reader that
//     cached a value and then goes quiet does not keep it alive past the
//     writer's Replace call
//
// A Ptr holds the current version. ReadShared returns a counted Handle that
// keeps its version alive until released. A per-goroutine Reader pins the
// last-observed version so repeated reads hit a cached handle instead of the
// shared slot. Weak references a version without keeping it alive and can be
// upgraded with Lock while the version still is.
//
// Replace and Close must be serialized by the caller; overlapping writer
// calls panic. Concurrent readers are always safe.
package readmostly
