// Package errors provides structured error types for the mediafs library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the guest entry point involved and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTrap).
//		Op("media_insert_file").
//		Cause(callErr).
//		Detail("guest trapped").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Trap("media_insert_file", callErr)
//	err := errors.Rejected("media_scan_file")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
