package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/mediafs"
	"github.com/wippyai/mediafs/errors"
	"github.com/wippyai/mediafs/redaction"
)

// Context is an attached guest instance with its entry points resolved.
//
// Context is thread-affine: it is created on the dispatch goroutine and must
// never be used from anywhere else. Tasks receive it as a parameter while
// running there; nothing here takes a lock.
type Context struct {
	// callCtx is the context guest invocations run under. The dispatch
	// goroutine owns the instance for its whole lifetime, so the attach
	// context is the natural scope for every call.
	callCtx context.Context

	mod    api.Module
	mem    api.Memory
	malloc api.Function
	free   api.Function

	getRedactionRanges  api.Function
	insertFile          api.Function
	deleteFile          api.Function
	isOpenAllowed       api.Function
	scanFile            api.Function
	isDirOpAllowed      api.Function
	isOpendirAllowed    api.Function
	getDirectoryEntries api.Function
}

var _ mediafs.Guest = (*Context)(nil)

func newContext(ctx context.Context, mod api.Module) (*Context, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NoExport("memory")
	}

	c := &Context{
		callCtx: ctx,
		mod:     mod,
		mem:     mem,
	}

	for _, ep := range []struct {
		name string
		fn   *api.Function
	}{
		{ExportMalloc, &c.malloc},
		{ExportFree, &c.free},
		{ExportGetRedactionRanges, &c.getRedactionRanges},
		{ExportInsertFile, &c.insertFile},
		{ExportDeleteFile, &c.deleteFile},
		{ExportIsOpenAllowed, &c.isOpenAllowed},
		{ExportScanFile, &c.scanFile},
		{ExportIsDirOpAllowed, &c.isDirOpAllowed},
		{ExportIsOpendirAllowed, &c.isOpendirAllowed},
		{ExportGetDirectoryEntries, &c.getDirectoryEntries},
	} {
		*ep.fn = mod.ExportedFunction(ep.name)
		if *ep.fn == nil {
			return nil, errors.NoExport(ep.name)
		}
	}
	return c, nil
}

// GetRedactionRanges implements mediafs.Guest.
func (c *Context) GetRedactionRanges(path string, uid uint32) ([]redaction.Range, error) {
	const op = ExportGetRedactionRanges
	buf, count, err := c.listCall(op, c.getRedactionRanges, path, rangeSize, uint64(uid))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return decodeRanges(op, buf, count)
}

// InsertFile implements mediafs.Guest.
func (c *Context) InsertFile(path string, uid uint32) int32 {
	return c.statusCall(ExportInsertFile, c.insertFile, path, uint64(uid))
}

// DeleteFile implements mediafs.Guest.
func (c *Context) DeleteFile(path string, uid uint32) int32 {
	return c.statusCall(ExportDeleteFile, c.deleteFile, path, uint64(uid))
}

// IsOpenAllowed implements mediafs.Guest.
func (c *Context) IsOpenAllowed(path string, uid uint32, forWrite bool) int32 {
	var write uint64
	if forWrite {
		write = 1
	}
	return c.statusCall(ExportIsOpenAllowed, c.isOpenAllowed, path, uint64(uid), write)
}

// IsDirOpAllowed implements mediafs.Guest.
func (c *Context) IsDirOpAllowed(path string, uid uint32, op mediafs.DirOp) int32 {
	return c.statusCall(ExportIsDirOpAllowed, c.isDirOpAllowed, path, uint64(uid), uint64(op))
}

// IsOpendirAllowed implements mediafs.Guest.
func (c *Context) IsOpendirAllowed(path string, uid uint32) int32 {
	return c.statusCall(ExportIsOpendirAllowed, c.isOpendirAllowed, path, uint64(uid))
}

// GetDirectoryEntries implements mediafs.Guest.
func (c *Context) GetDirectoryEntries(uid uint32, path string) ([]mediafs.DirEntry, error) {
	const op = ExportGetDirectoryEntries
	buf, n, err := c.listCall(op, c.getDirectoryEntries, path, 1, uint64(uid))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return decodeDirEntries(op, buf)
}

// ScanFile implements mediafs.Guest. Failures are logged and swallowed:
// scan requests are best effort and report nothing.
func (c *Context) ScanFile(path string) {
	const op = ExportScanFile
	ptr, n, err := c.writeString(op, path)
	if err != nil {
		logger().Warn("scan request dropped", zap.String("path", path), zap.Error(err))
		return
	}
	defer c.freeGuest(ptr, n)

	if _, err := c.scanFile.Call(c.callCtx, uint64(ptr), uint64(n)); err != nil {
		logger().Warn("scan request trapped", zap.String("path", path), zap.Error(err))
	}
}

// statusCall invokes a status-returning entry point with (path_ptr, path_len,
// extra...) and returns its i32. Marshaling failures and guest traps come
// back as -EFAULT; the dispatcher never sees an error.
func (c *Context) statusCall(op string, fn api.Function, path string, extra ...uint64) int32 {
	ptr, n, err := c.writeString(op, path)
	if err != nil {
		logger().Warn("marshal failed", zap.String("op", op), zap.Error(err))
		return -int32(unix.EFAULT)
	}
	defer c.freeGuest(ptr, n)

	args := append([]uint64{uint64(ptr), uint64(n)}, extra...)
	res, err := fn.Call(c.callCtx, args...)
	if err != nil {
		logger().Warn("guest call trapped", zap.String("op", op), zap.Error(err))
		return -int32(unix.EFAULT)
	}
	if len(res) != 1 {
		logger().Warn("guest returned wrong arity", zap.String("op", op), zap.Int("results", len(res)))
		return -int32(unix.EFAULT)
	}
	return int32(uint32(res[0]))
}

// listCall invokes a list-returning entry point and hands back a copy of the
// guest result buffer together with its count (or byte length, for
// elemSize 1). The guest buffer is freed before returning.
func (c *Context) listCall(op string, fn api.Function, path string, elemSize uint32, extra ...uint64) ([]byte, uint32, error) {
	ptr, n, err := c.writeString(op, path)
	if err != nil {
		return nil, 0, err
	}
	defer c.freeGuest(ptr, n)

	args := append([]uint64{uint64(ptr), uint64(n)}, extra...)
	res, err := fn.Call(c.callCtx, args...)
	if err != nil {
		return nil, 0, errors.Trap(op, err)
	}
	if len(res) != 1 {
		return nil, 0, errors.BadPayload(op, "wrong result arity")
	}
	if ret := int64(res[0]); ret < 0 {
		return nil, 0, errors.Denied(op, int32(ret))
	}

	bufPtr, count := splitPacked(res[0])
	if count == 0 {
		c.freeGuest(bufPtr, 0)
		return nil, 0, nil
	}
	if count > ^uint32(0)/elemSize {
		return nil, 0, errors.BadPayload(op, "result count overflows buffer size")
	}

	size := count * elemSize
	view, ok := c.mem.Read(bufPtr, size)
	if !ok {
		c.freeGuest(bufPtr, size)
		return nil, 0, errors.OutOfBounds(errors.PhaseDecode, op, bufPtr, size)
	}
	// The view aliases guest memory; copy before freeing.
	buf := make([]byte, len(view))
	copy(buf, view)
	c.freeGuest(bufPtr, size)
	return buf, count, nil
}

// writeString allocates guest memory and copies s into it. The empty string
// is passed as (0, 0) without touching the allocator.
func (c *Context) writeString(op, s string) (ptr, size uint32, err error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	size = uint32(len(s))

	res, err := c.malloc.Call(c.callCtx, uint64(size))
	if err != nil {
		return 0, 0, errors.Trap(ExportMalloc, err)
	}
	if len(res) != 1 || uint32(res[0]) == 0 {
		return 0, 0, errors.AllocationFailed(op, size)
	}
	ptr = uint32(res[0])

	if !c.mem.WriteString(ptr, s) {
		c.freeGuest(ptr, size)
		return 0, 0, errors.OutOfBounds(errors.PhaseEncode, op, ptr, size)
	}
	return ptr, size, nil
}

// freeGuest returns a guest allocation. A trap here is unrecoverable for the
// allocation but not for the bridge, so it is only logged.
func (c *Context) freeGuest(ptr, size uint32) {
	if ptr == 0 {
		return
	}
	if _, err := c.free.Call(c.callCtx, uint64(ptr), uint64(size)); err != nil {
		logger().Warn("guest free trapped", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
