package testbed

import (
	"context"
	stderrors "errors"
	"os"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wippyai/mediafs"
	"github.com/wippyai/mediafs/errors"
	"github.com/wippyai/mediafs/provider"
	"github.com/wippyai/mediafs/redaction"
)

const (
	appUID    = uint32(10023)
	systemUID = uint32(99)
)

func loadGuest(t *testing.T) *provider.Provider {
	t.Helper()

	wasmBytes, err := os.ReadFile("media_guest.wasm")
	if err != nil {
		t.Skipf("media_guest.wasm not found (build with wat2wasm media_guest.wat): %v", err)
	}

	p, err := provider.New(context.Background(), wasmBytes, nil)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p
}

func TestGuest_FilePermissions(t *testing.T) {
	p := loadGuest(t)

	if s := p.InsertFile("/DCIM/new.jpg", appUID); s != 0 {
		t.Errorf("InsertFile as app = %d, want 0", s)
	}
	if s := p.InsertFile("/DCIM/new.jpg", systemUID); s != -int32(unix.EPERM) {
		t.Errorf("InsertFile as system = %d, want -EPERM", s)
	}
	if s := p.DeleteFile("/DCIM/old.jpg", appUID); s != 0 {
		t.Errorf("DeleteFile as app = %d, want 0", s)
	}

	if s := p.IsOpenAllowed("/DCIM/a.jpg", systemUID, false); s != 0 {
		t.Errorf("read open as system = %d, want 0", s)
	}
	if s := p.IsOpenAllowed("/DCIM/a.jpg", systemUID, true); s != -int32(unix.EACCES) {
		t.Errorf("write open as system = %d, want -EACCES", s)
	}
	if s := p.IsOpenAllowed("/DCIM/a.jpg", appUID, true); s != 0 {
		t.Errorf("write open as app = %d, want 0", s)
	}
}

func TestGuest_DirPermissions(t *testing.T) {
	p := loadGuest(t)

	if s := p.IsCreatingDirAllowed("/DCIM/Camera2", systemUID); s != 0 {
		t.Errorf("mkdir as system = %d, want 0", s)
	}
	if s := p.IsDeletingDirAllowed("/DCIM/Camera", systemUID); s != -int32(unix.EACCES) {
		t.Errorf("rmdir as system = %d, want -EACCES", s)
	}
	if s := p.IsDeletingDirAllowed("/DCIM/Camera", appUID); s != 0 {
		t.Errorf("rmdir as app = %d, want 0", s)
	}
	if s := p.IsOpendirAllowed("/DCIM", systemUID); s != 0 {
		t.Errorf("opendir = %d, want 0", s)
	}
}

func TestGuest_RedactionRanges(t *testing.T) {
	p := loadGuest(t)

	info, err := p.GetRedactionInfo("/DCIM/IMG_0001.jpg", appUID)
	if err != nil {
		t.Fatalf("GetRedactionInfo as app: %v", err)
	}
	want := []redaction.Range{{Start: 16, End: 32}, {Start: 64, End: 128}}
	if !reflect.DeepEqual(info.Ranges(), want) {
		t.Fatalf("ranges = %v, want %v", info.Ranges(), want)
	}

	info, err = p.GetRedactionInfo("/DCIM/IMG_0001.jpg", systemUID)
	if err != nil {
		t.Fatalf("GetRedactionInfo as system: %v", err)
	}
	if info.IsRedactionNeeded() {
		t.Fatalf("system uid should see no redaction, got %v", info.Ranges())
	}

	_, err = p.GetRedactionInfo("/DCIM/IMG_0001.jpg", 4242)
	var target *errors.Error
	if !stderrors.As(err, &target) || target.Kind != errors.KindDenied {
		t.Fatalf("uid 4242: expected denied error, got %v", err)
	}
	if target.Errno != -int32(unix.EACCES) {
		t.Fatalf("uid 4242: errno = %d, want -EACCES", target.Errno)
	}
}

func TestGuest_DirectoryEntries(t *testing.T) {
	p := loadGuest(t)

	entries, err := p.GetDirectoryEntries(appUID, "/DCIM", nil)
	if err != nil {
		t.Fatalf("GetDirectoryEntries: %v", err)
	}
	want := []mediafs.DirEntry{
		{Name: "Camera", Type: unix.DT_DIR},
		{Name: "IMG_0001.jpg", Type: unix.DT_REG},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}

func TestGuest_ScanFile(t *testing.T) {
	p := loadGuest(t)

	// Fire-and-forget; Close drains the queue, so this exercises the full
	// path through the guest before detach.
	p.ScanFile("/DCIM/IMG_0001.jpg")
}

func TestGuest_ConcurrentCallers(t *testing.T) {
	p := loadGuest(t)

	const callers = 32
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				uid := appUID + uint32(i)
				if s := p.IsOpenAllowed("/DCIM/a.jpg", uid, true); s != 0 {
					t.Errorf("caller %d: write open = %d", i, s)
					return
				}
				if _, err := p.GetRedactionInfo("/DCIM/a.jpg", uid); err != nil {
					t.Errorf("caller %d: redaction: %v", i, err)
					return
				}
				p.ScanFile("/DCIM/a.jpg")
			}
		}()
	}
	wg.Wait()
}
