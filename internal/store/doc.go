// Package store is the connection gateway for the activity database.
//
// The database is a single SQLite file that admits exactly one writer at a
// time. Every other package obtains connections here, either directly
// (OpenReadOnly, OpenReadWrite) or through the scoped helpers WithReadOnly
// and WithReadWrite, which guarantee the connection is closed on every exit
// path.
//
// # Contention
//
// A read-write open fails with lock contention when another connection in
// this process holds the file's writer token (ErrWriterBusy) or when SQLite
// reports SQLITE_BUSY/SQLITE_LOCKED while probing the write lock. Contention
// is retried up to Config.Retries attempts, sleeping Backoff*n before attempt
// n+1. Any other failure (missing file for read-only opens, permission
// errors, corrupt files) is returned on the first attempt.
//
// # Database Configuration
//
//   - WAL mode: readers proceed while a writer is active
//   - synchronous=NORMAL
//   - busy_timeout from Config.BusyTimeout
//   - _txlock=immediate: transactions take the write lock at BEGIN
//   - foreign_keys left OFF: child tables reference activities by id only
//
// Engine-specific error handling is confined to this package; callers use
// IsContention and TableExists instead of inspecting driver errors.
package store
