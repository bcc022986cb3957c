// Package engine hosts the media-provider guest with wazero and implements
// the call ABI between host and guest.
//
// An Engine compiles the guest module once; Attach instantiates it and
// resolves every entry point the bridge will ever invoke, producing a
// Context. The Context is thread-affine by contract: it is only ever created
// on and used from the dispatch goroutine (see the dispatch package), so none
// of its methods take a lock.
//
// # Guest ABI
//
// The guest is a core wasm module exporting linear memory, a bump or heap
// allocator pair
//
//	malloc(size: i32) -> i32
//	free(ptr: i32, size: i32)
//
// and one entry point per media operation. Strings cross the boundary as
// (ptr, len) pairs written into guest memory by the host. Status-returning
// entry points yield an i32: zero for success, a negated errno for denial.
// List-returning entry points yield a packed i64: negative for failure
// (the value is the negated errno), otherwise the high 32 bits are a guest
// pointer to a result buffer the host reads and then frees, and the low 32
// bits are its element count or byte length.
package engine
