// Package provider exposes the typed media operations that filesystem
// handlers forward to the guest.
//
// Provider is the high-level entry point of the library: it compiles the
// guest, starts the dispatch goroutine and wraps every guest entry point in
// a small request/response method. Status-returning methods never fail at
// the Go level; they report zero for success or a negated errno, with
// -EFAULT standing in when the dispatcher is shutting down or the guest
// misbehaves. Value-returning methods distinguish "guest said no" from
// "dispatcher unavailable" through the errors package Kind.
//
// All methods are safe for concurrent use. Synchronous operations block
// without bound until the dispatch goroutine has executed them; only
// ScanFile is fire-and-forget.
package provider
