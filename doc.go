// Package mediafs bridges filesystem operation handlers to a WebAssembly
// media-provider guest.
//
// The guest owns the business logic for a media filesystem: permission
// checks, database inserts and deletes, redaction ranges, and directory
// listings. A wasm module instance is not safe for concurrent calls (one
// linear memory, mutable globals, a non-reentrant guest allocator), so every
// call into the guest is funneled through a single dispatch goroutine that
// owns the instance for its entire lifetime.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	mediafs/          Root package with the Guest interface and shared types
//	├── provider/     High-level API: typed media operations over a guest
//	├── dispatch/     Single-threaded task dispatcher owning the guest context
//	├── engine/       Low-level wazero integration and the guest call ABI
//	├── redaction/    Normalized redaction byte ranges
//	└── errors/       Structured error types for debugging
//
// # Quick Start
//
// Load a guest and forward operations to it:
//
//	p, err := provider.New(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	if status := p.IsOpenAllowed("/storage/emulated/0/DCIM/a.jpg", uid, false); status != 0 {
//	    return status // negated errno
//	}
//
// # Thread Safety
//
// Provider and Dispatcher are safe for concurrent use from any number of
// goroutines. The guest context is NOT: it is created on the dispatch
// goroutine and never leaves it. Tasks receive the context as a parameter
// while running there and must not retain it.
//
// # Status Codes
//
// Permission and mutation operations return an int32 status following the
// POSIX convention: zero means success or allowed, a negative value is a
// negated errno describing the denial.
package mediafs
