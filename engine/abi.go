package engine

import (
	"encoding/binary"

	"github.com/wippyai/mediafs"
	"github.com/wippyai/mediafs/errors"
	"github.com/wippyai/mediafs/redaction"
)

// Guest export names. Every entry point is resolved once at attach time;
// a guest missing any of them is rejected outright.
const (
	ExportMalloc = "malloc"
	ExportFree   = "free"

	ExportGetRedactionRanges  = "media_get_redaction_ranges"
	ExportInsertFile          = "media_insert_file"
	ExportDeleteFile          = "media_delete_file"
	ExportIsOpenAllowed       = "media_is_open_allowed"
	ExportScanFile            = "media_scan_file"
	ExportIsDirOpAllowed      = "media_is_dir_op_allowed"
	ExportIsOpendirAllowed    = "media_is_opendir_allowed"
	ExportGetDirectoryEntries = "media_get_directory_entries"
)

// rangeSize is the wire size of one redaction range: two little-endian u64s.
const rangeSize = 16

// dirEntryHeaderSize is the fixed prefix of one directory entry record:
// u8 d_type followed by a little-endian u32 name length.
const dirEntryHeaderSize = 5

// splitPacked unpacks the i64 result of a list-returning entry point into a
// guest pointer (high 32 bits) and a count or byte length (low 32 bits).
// The caller has already ruled out the negative failure encoding.
func splitPacked(v uint64) (ptr, n uint32) {
	return uint32(v >> 32), uint32(v)
}

// decodeRanges decodes count redaction ranges from a guest result buffer.
func decodeRanges(op string, buf []byte, count uint32) ([]redaction.Range, error) {
	if uint32(len(buf)) != count*rangeSize {
		return nil, errors.BadPayload(op, "range buffer size mismatch")
	}
	ranges := make([]redaction.Range, count)
	for i := range ranges {
		rec := buf[i*rangeSize:]
		ranges[i] = redaction.Range{
			Start: binary.LittleEndian.Uint64(rec),
			End:   binary.LittleEndian.Uint64(rec[8:]),
		}
		if ranges[i].End < ranges[i].Start {
			return nil, errors.New(errors.PhaseDecode, errors.KindBadPayload).
				Op(op).
				Detail("range %d ends (%d) before it starts (%d)", i, ranges[i].End, ranges[i].Start).
				Build()
		}
	}
	return ranges, nil
}

// decodeDirEntries decodes a packed directory listing. Each record is a u8
// d_type, a u32 name length and the name bytes, back to back.
func decodeDirEntries(op string, buf []byte) ([]mediafs.DirEntry, error) {
	var entries []mediafs.DirEntry
	for off := 0; off < len(buf); {
		if len(buf)-off < dirEntryHeaderSize {
			return nil, errors.BadPayload(op, "truncated entry header")
		}
		typ := buf[off]
		nameLen := int(binary.LittleEndian.Uint32(buf[off+1:]))
		off += dirEntryHeaderSize

		if nameLen == 0 {
			return nil, errors.BadPayload(op, "empty entry name")
		}
		if nameLen > len(buf)-off {
			return nil, errors.BadPayload(op, "entry name past end of buffer")
		}
		entries = append(entries, mediafs.DirEntry{
			Name: string(buf[off : off+nameLen]),
			Type: typ,
		})
		off += nameLen
	}
	return entries, nil
}
