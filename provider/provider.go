package provider

import (
	"context"
	"io/fs"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/mediafs"
	"github.com/wippyai/mediafs/dispatch"
	"github.com/wippyai/mediafs/engine"
	"github.com/wippyai/mediafs/errors"
	"github.com/wippyai/mediafs/redaction"
)

// statusUnavailable is the documented default status when a synchronous
// submission is rejected or the guest cannot be reached.
const statusUnavailable = -int32(unix.EFAULT)

// Options configures a Provider.
type Options struct {
	// Engine configures the wazero engine hosting the guest.
	Engine *engine.Config
}

// Provider forwards media operations to the guest through a single-threaded
// dispatcher. Safe for concurrent use.
type Provider struct {
	eng  *engine.Engine
	disp *dispatch.Dispatcher[mediafs.Guest]
}

// guestRuntime adapts Engine to the dispatcher's Runtime interface.
type guestRuntime struct {
	eng *engine.Engine
}

func (r guestRuntime) Attach(ctx context.Context) (mediafs.Guest, error) {
	return r.eng.Attach(ctx)
}

func (r guestRuntime) Detach(ctx context.Context, g mediafs.Guest) error {
	c, ok := g.(*engine.Context)
	if !ok {
		return nil
	}
	return r.eng.Detach(ctx, c)
}

// New compiles guestWasm and starts the dispatch goroutine. A guest that
// fails to compile, instantiate or export the required entry points makes
// New fail; there is no degraded mode.
func New(ctx context.Context, guestWasm []byte, opts *Options) (*Provider, error) {
	var engCfg *engine.Config
	if opts != nil {
		engCfg = opts.Engine
	}

	eng, err := engine.New(ctx, engCfg)
	if err != nil {
		return nil, err
	}
	if err := eng.LoadGuest(ctx, guestWasm); err != nil {
		return nil, multierr.Append(err, eng.Close(ctx))
	}

	disp, err := dispatch.New[mediafs.Guest](ctx, guestRuntime{eng})
	if err != nil {
		return nil, multierr.Append(err, eng.Close(ctx))
	}

	return &Provider{eng: eng, disp: disp}, nil
}

// NewWithRuntime starts a provider over an externally supplied guest
// runtime. Used by tests and by embedders that manage the engine themselves.
func NewWithRuntime(ctx context.Context, rt dispatch.Runtime[mediafs.Guest]) (*Provider, error) {
	disp, err := dispatch.New(ctx, rt)
	if err != nil {
		return nil, err
	}
	return &Provider{disp: disp}, nil
}

// Close drains the queue, detaches the guest and joins the dispatch
// goroutine. Operations submitted before Close run to completion; later ones
// are rejected. Idempotent.
func (p *Provider) Close(ctx context.Context) error {
	err := p.disp.Close(ctx)
	if p.eng != nil {
		err = multierr.Append(err, p.eng.Close(ctx))
	}
	return err
}

// status runs a status-returning guest call synchronously.
func (p *Provider) status(run func(g mediafs.Guest) int32) int32 {
	status := statusUnavailable
	if !p.disp.PostAndWait(func(g mediafs.Guest) { status = run(g) }) {
		return statusUnavailable
	}
	return status
}

// GetRedactionInfo computes the redaction ranges of path as visible to uid.
// The result is normalized; a file with nothing to hide yields an Info whose
// IsRedactionNeeded reports false.
func (p *Provider) GetRedactionInfo(path string, uid uint32) (*redaction.Info, error) {
	var (
		ranges  []redaction.Range
		callErr error
	)
	if !p.disp.PostAndWait(func(g mediafs.Guest) {
		ranges, callErr = g.GetRedactionRanges(path, uid)
	}) {
		return nil, errors.Rejected(engine.ExportGetRedactionRanges)
	}
	if callErr != nil {
		return nil, callErr
	}
	return redaction.NewInfo(ranges...), nil
}

// InsertFile creates a database entry for path on behalf of uid.
// Returns 0 on success or a negated errno.
func (p *Provider) InsertFile(path string, uid uint32) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.InsertFile(path, uid) })
}

// DeleteFile removes the database entry for path on behalf of uid.
// Returns 0 on success or a negated errno.
func (p *Provider) DeleteFile(path string, uid uint32) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.DeleteFile(path, uid) })
}

// IsOpenAllowed checks whether uid may open path, optionally for write.
// Returns 0 if allowed or a negated errno.
func (p *Provider) IsOpenAllowed(path string, uid uint32, forWrite bool) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.IsOpenAllowed(path, uid, forWrite) })
}

// IsCreatingDirAllowed checks whether uid may create the directory at path.
func (p *Provider) IsCreatingDirAllowed(path string, uid uint32) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.IsDirOpAllowed(path, uid, mediafs.DirOpCreate) })
}

// IsDeletingDirAllowed checks whether uid may delete the directory at path.
func (p *Provider) IsDeletingDirAllowed(path string, uid uint32) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.IsDirOpAllowed(path, uid, mediafs.DirOpDelete) })
}

// IsOpendirAllowed checks whether uid may list the directory at path.
func (p *Provider) IsOpendirAllowed(path string, uid uint32) int32 {
	return p.status(func(g mediafs.Guest) int32 { return g.IsOpendirAllowed(path, uid) })
}

// GetDirectoryEntries lists the entries of path visible to uid: the guest's
// database entries first, then anything in lower (the backing directory
// stream) the guest did not claim. lower may be nil to list database entries
// only. An unknown path yields an empty listing, not an error.
func (p *Provider) GetDirectoryEntries(uid uint32, path string, lower fs.ReadDirFile) ([]mediafs.DirEntry, error) {
	var (
		entries []mediafs.DirEntry
		callErr error
	)
	if !p.disp.PostAndWait(func(g mediafs.Guest) {
		entries, callErr = g.GetDirectoryEntries(uid, path)
		if callErr != nil || lower == nil {
			return
		}
		entries = mergeLowerEntries(entries, lower)
	}) {
		return nil, errors.Rejected(engine.ExportGetDirectoryEntries)
	}
	return entries, callErr
}

// ScanFile asks the guest to reconcile path with its database. Fire and
// forget: there is no confirmation, and after shutdown begins the request is
// silently dropped.
func (p *Provider) ScanFile(path string) {
	p.disp.Post(func(g mediafs.Guest) { g.ScanFile(path) })
}

// mergeLowerEntries appends entries from the lower directory stream that the
// guest did not already report. Only regular files and directories are
// carried over.
func mergeLowerEntries(entries []mediafs.DirEntry, lower fs.ReadDirFile) []mediafs.DirEntry {
	lowerEntries, err := lower.ReadDir(-1)
	if err != nil {
		logger().Warn("lower directory read failed", zap.Error(err))
		return entries
	}

	claimed := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		claimed[e.Name] = struct{}{}
	}

	for _, le := range lowerEntries {
		if _, ok := claimed[le.Name()]; ok {
			continue
		}
		var typ uint8
		switch {
		case le.IsDir():
			typ = unix.DT_DIR
		case le.Type().IsRegular():
			typ = unix.DT_REG
		default:
			continue
		}
		entries = append(entries, mediafs.DirEntry{Name: le.Name(), Type: typ})
	}
	return entries
}
