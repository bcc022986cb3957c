package redaction

import "sort"

// Range is a half-open byte interval [Start, End) to be redacted.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Info is a normalized set of redaction ranges: sorted by start offset, with
// empty ranges dropped and overlapping or adjacent ranges merged.
type Info struct {
	ranges []Range
}

// NewInfo builds an Info from raw guest-reported ranges. The input may be
// unsorted and overlapping; it is not modified.
func NewInfo(ranges ...Range) *Info {
	merged := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Len() > 0 {
			merged = append(merged, r)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Start != merged[j].Start {
			return merged[i].Start < merged[j].Start
		}
		return merged[i].End < merged[j].End
	})

	out := merged[:0]
	for _, r := range merged {
		if n := len(out); n > 0 && r.Start <= out[n-1].End {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return &Info{ranges: out}
}

// IsRedactionNeeded reports whether any byte of the file is redacted.
func (i *Info) IsRedactionNeeded() bool {
	return len(i.ranges) > 0
}

// Ranges returns the normalized ranges. The returned slice must not be
// modified.
func (i *Info) Ranges() []Range {
	return i.ranges
}

// Overlapping returns the redacted ranges intersecting the read window
// [off, off+size), clipped to the window. A zero-size window yields nil.
func (i *Info) Overlapping(off, size uint64) []Range {
	if size == 0 {
		return nil
	}
	end := off + size

	// First range ending after the window start.
	lo := sort.Search(len(i.ranges), func(n int) bool {
		return i.ranges[n].End > off
	})

	var out []Range
	for _, r := range i.ranges[lo:] {
		if r.Start >= end {
			break
		}
		clipped := r
		if clipped.Start < off {
			clipped.Start = off
		}
		if clipped.End > end {
			clipped.End = end
		}
		out = append(out, clipped)
	}
	return out
}
