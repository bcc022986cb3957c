// Package redaction represents the byte ranges of a file that must be hidden
// from a reader.
//
// The guest reports raw ranges (EXIF location tags, XMP blocks and similar);
// Info normalizes them into a sorted, non-overlapping set and answers overlap
// queries for individual reads.
package redaction
