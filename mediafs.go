package mediafs

import "github.com/wippyai/mediafs/redaction"

// DirEntry is a single directory entry reported by the guest or merged in
// from the lower filesystem.
type DirEntry struct {
	Name string
	// Type is a d_type value (unix.DT_REG, unix.DT_DIR, ...).
	Type uint8
}

// DirOp selects the directory mutation being checked by IsDirOpAllowed.
type DirOp uint32

const (
	DirOpCreate DirOp = iota + 1
	DirOpDelete
)

func (op DirOp) String() string {
	switch op {
	case DirOpCreate:
		return "create"
	case DirOpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Guest is the entry-point surface of an attached media-provider guest.
//
// All methods must be called from the dispatch goroutine only; the
// implementation is bound to the thread that instantiated it. Status-returning
// methods follow the negated-errno convention and never fail at the Go level:
// a guest trap is converted to a negative status inside the implementation.
type Guest interface {
	// GetRedactionRanges returns the raw, possibly overlapping redaction
	// ranges for the file at path as visible to uid.
	GetRedactionRanges(path string, uid uint32) ([]redaction.Range, error)

	// InsertFile creates a database entry for path on behalf of uid.
	InsertFile(path string, uid uint32) int32

	// DeleteFile removes the database entry for path on behalf of uid.
	DeleteFile(path string, uid uint32) int32

	// IsOpenAllowed checks whether uid may open path, optionally for write.
	IsOpenAllowed(path string, uid uint32, forWrite bool) int32

	// IsDirOpAllowed checks whether uid may create or delete the directory
	// at path.
	IsDirOpAllowed(path string, uid uint32, op DirOp) int32

	// IsOpendirAllowed checks whether uid may list the directory at path.
	IsOpendirAllowed(path string, uid uint32) int32

	// GetDirectoryEntries returns the entries of path known to the guest's
	// database, in the guest's order. An unknown path yields an empty list,
	// not an error.
	GetDirectoryEntries(uid uint32, path string) ([]DirEntry, error)

	// ScanFile asks the guest to reconcile path with its database. Best
	// effort; no result is reported.
	ScanFile(path string)
}
