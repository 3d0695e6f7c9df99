// Package core keeps the persisted instrument store in step with the
// published master files and resolves search terms against it.
//
// # Refresh cycle
//
// [Service.EnsureUpdated] drives one tool through
//
//	FRESH -> no-op
//	STALE -> CLEARING -> REFRESHING -> COMMITTED
//	                     REFRESHING -> ABORTED
//
// A tool is FRESH when its freshness record is dated today (date only, local
// time) and the caller did not force a refresh. CLEARING empties the tool's
// table and its working directory. REFRESHING walks the tool's masters in
// catalogue order: download, decode, parse, normalize, snapshot, insert.
// Download and persistence failures abort the loop and leave rows inserted
// so far in place without a freshness commit; the next call starts over.
// Parse failures only empty that master's contribution. Freshness is
// committed only when every master succeeded and at least one row was
// inserted.
//
// Refreshes of one tool are serialized by a lease; a waiting caller
// re-checks freshness once it gets the lease.
//
// # Lookup
//
// [Service.Resolve] tries exact code, exact name, name prefix and name
// substring in that order and returns the first row of the first tier that
// matches. It never fails; errors are logged and reported as not found.
//
// # Error Handling
//
// Failures carry a [Kind] inside a [SyncError] and are appended to the
// advisory [ErrorLog]. [MapError] turns them into coded user messages.
package core
