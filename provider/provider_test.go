package provider

import (
	"context"
	stderrors "errors"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"

	"golang.org/x/sys/unix"

	"github.com/wippyai/mediafs"
	"github.com/wippyai/mediafs/errors"
	"github.com/wippyai/mediafs/redaction"
)

// fakeGuest records calls and serves canned answers. It is only ever touched
// from the dispatch goroutine, matching the Guest contract.
type fakeGuest struct {
	ranges    []redaction.Range
	rangesErr error
	entries   []mediafs.DirEntry
	status    int32

	inserts []string
	deletes []string
	dirOps  []mediafs.DirOp
	scans   []string
}

func (g *fakeGuest) GetRedactionRanges(path string, uid uint32) ([]redaction.Range, error) {
	return g.ranges, g.rangesErr
}

func (g *fakeGuest) InsertFile(path string, uid uint32) int32 {
	g.inserts = append(g.inserts, path)
	return g.status
}

func (g *fakeGuest) DeleteFile(path string, uid uint32) int32 {
	g.deletes = append(g.deletes, path)
	return g.status
}

func (g *fakeGuest) IsOpenAllowed(path string, uid uint32, forWrite bool) int32 {
	if forWrite {
		return -int32(unix.EACCES)
	}
	return g.status
}

func (g *fakeGuest) IsDirOpAllowed(path string, uid uint32, op mediafs.DirOp) int32 {
	g.dirOps = append(g.dirOps, op)
	return g.status
}

func (g *fakeGuest) IsOpendirAllowed(path string, uid uint32) int32 {
	return g.status
}

func (g *fakeGuest) GetDirectoryEntries(uid uint32, path string) ([]mediafs.DirEntry, error) {
	return g.entries, nil
}

func (g *fakeGuest) ScanFile(path string) {
	g.scans = append(g.scans, path)
}

type fakeGuestRuntime struct {
	guest *fakeGuest
}

func (r fakeGuestRuntime) Attach(ctx context.Context) (mediafs.Guest, error) {
	return r.guest, nil
}

func (r fakeGuestRuntime) Detach(ctx context.Context, g mediafs.Guest) error {
	return nil
}

func newTestProvider(t *testing.T, g *fakeGuest) *Provider {
	t.Helper()
	p, err := NewWithRuntime(context.Background(), fakeGuestRuntime{guest: g})
	if err != nil {
		t.Fatalf("NewWithRuntime: %v", err)
	}
	return p
}

func TestProvider_StatusOps(t *testing.T) {
	g := &fakeGuest{status: 0}
	p := newTestProvider(t, g)
	defer p.Close(context.Background())

	if s := p.InsertFile("/a.jpg", 10); s != 0 {
		t.Errorf("InsertFile = %d", s)
	}
	if s := p.DeleteFile("/a.jpg", 10); s != 0 {
		t.Errorf("DeleteFile = %d", s)
	}
	if s := p.IsOpenAllowed("/a.jpg", 10, false); s != 0 {
		t.Errorf("IsOpenAllowed read = %d", s)
	}
	if s := p.IsOpenAllowed("/a.jpg", 10, true); s != -int32(unix.EACCES) {
		t.Errorf("IsOpenAllowed write = %d, want -EACCES", s)
	}
	if s := p.IsOpendirAllowed("/dir", 10); s != 0 {
		t.Errorf("IsOpendirAllowed = %d", s)
	}

	p.Close(context.Background())
	if !reflect.DeepEqual(g.inserts, []string{"/a.jpg"}) || !reflect.DeepEqual(g.deletes, []string{"/a.jpg"}) {
		t.Errorf("guest saw inserts=%v deletes=%v", g.inserts, g.deletes)
	}
}

func TestProvider_DirOpMapping(t *testing.T) {
	g := &fakeGuest{}
	p := newTestProvider(t, g)

	p.IsCreatingDirAllowed("/new", 10)
	p.IsDeletingDirAllowed("/old", 10)
	p.Close(context.Background())

	want := []mediafs.DirOp{mediafs.DirOpCreate, mediafs.DirOpDelete}
	if !reflect.DeepEqual(g.dirOps, want) {
		t.Fatalf("dir ops = %v, want %v", g.dirOps, want)
	}
}

func TestProvider_GetRedactionInfo_Normalizes(t *testing.T) {
	g := &fakeGuest{ranges: []redaction.Range{{Start: 20, End: 40}, {Start: 10, End: 25}}}
	p := newTestProvider(t, g)
	defer p.Close(context.Background())

	info, err := p.GetRedactionInfo("/a.jpg", 10)
	if err != nil {
		t.Fatalf("GetRedactionInfo: %v", err)
	}
	want := []redaction.Range{{Start: 10, End: 40}}
	if !reflect.DeepEqual(info.Ranges(), want) {
		t.Fatalf("ranges = %v, want %v", info.Ranges(), want)
	}
}

func TestProvider_GetRedactionInfo_GuestError(t *testing.T) {
	g := &fakeGuest{rangesErr: errors.Denied("media_get_redaction_ranges", -int32(unix.EACCES))}
	p := newTestProvider(t, g)
	defer p.Close(context.Background())

	_, err := p.GetRedactionInfo("/a.jpg", 10)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCall, Kind: errors.KindDenied}) {
		t.Fatalf("expected denied error, got %v", err)
	}
}

func TestProvider_GetDirectoryEntries_MergesLower(t *testing.T) {
	g := &fakeGuest{entries: []mediafs.DirEntry{
		{Name: "IMG_0001.jpg", Type: unix.DT_REG},
	}}
	p := newTestProvider(t, g)
	defer p.Close(context.Background())

	fsys := fstest.MapFS{
		"IMG_0001.jpg": &fstest.MapFile{},
		"IMG_0002.jpg": &fstest.MapFile{},
		"Camera":       &fstest.MapFile{Mode: fs.ModeDir},
	}
	f, err := fsys.Open(".")
	if err != nil {
		t.Fatalf("open lower: %v", err)
	}
	lower, ok := f.(fs.ReadDirFile)
	if !ok {
		t.Fatal("lower is not a ReadDirFile")
	}

	entries, err := p.GetDirectoryEntries(10, "/DCIM", lower)
	if err != nil {
		t.Fatalf("GetDirectoryEntries: %v", err)
	}

	want := []mediafs.DirEntry{
		{Name: "IMG_0001.jpg", Type: unix.DT_REG}, // guest wins for claimed names
		{Name: "Camera", Type: unix.DT_DIR},
		{Name: "IMG_0002.jpg", Type: unix.DT_REG},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}

func TestProvider_GetDirectoryEntries_NilLower(t *testing.T) {
	g := &fakeGuest{}
	p := newTestProvider(t, g)
	defer p.Close(context.Background())

	entries, err := p.GetDirectoryEntries(10, "/unknown", nil)
	if err != nil {
		t.Fatalf("GetDirectoryEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want empty", entries)
	}
}

func TestProvider_ScanFile_Async(t *testing.T) {
	g := &fakeGuest{}
	p := newTestProvider(t, g)

	p.ScanFile("/DCIM/IMG_0001.jpg")
	// Close drains the queue, so the scan ran before the guest detached.
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !reflect.DeepEqual(g.scans, []string{"/DCIM/IMG_0001.jpg"}) {
		t.Fatalf("scans = %v", g.scans)
	}
}

func TestProvider_AfterClose(t *testing.T) {
	g := &fakeGuest{}
	p := newTestProvider(t, g)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if s := p.InsertFile("/late.jpg", 10); s != -int32(unix.EFAULT) {
		t.Errorf("InsertFile after close = %d, want -EFAULT", s)
	}
	if _, err := p.GetRedactionInfo("/late.jpg", 10); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDispatch, Kind: errors.KindRejected}) {
		t.Errorf("GetRedactionInfo after close: %v", err)
	}
	p.ScanFile("/late.jpg") // silently dropped

	if len(g.inserts) != 0 || len(g.scans) != 0 {
		t.Errorf("guest saw post-close calls: %v %v", g.inserts, g.scans)
	}
}
