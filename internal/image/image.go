// Package image describes the assembled byte-code image's section layout
// (spec §6.3): the ordered text/ro_data/data/bss sections the emitter's
// basic-block tree is flattened into. Assembly to an actual VM image is an
// external non-goal; this package only models the data shape that a real
// assembler would consume.
package image

import "fmt"

// Section names the four sections, emitted in this fixed order.
type Section int

const (
	SectionText Section = iota
	SectionRoData
	SectionData
	SectionBss
)

func (s Section) String() string {
	switch s {
	case SectionText:
		return "text"
	case SectionRoData:
		return "ro_data"
	case SectionData:
		return "data"
	case SectionBss:
		return "bss"
	default:
		return "unknown"
	}
}

// Alignment is the section's leading alignment directive (§6.4): strings are
// dword-aligned, type-info entries qword-aligned, composite data respects
// its own alignment — callers needing a different alignment for a composite
// blob pass it explicitly via Blob.Align.
const (
	AlignString   = 4
	AlignTypeInfo = 8
)

// Blob is one named chunk of section content: a label, its raw bytes (for
// data/ro_data) or its reserved size (for bss, where Bytes is nil), and the
// alignment it must start on.
type Blob struct {
	Label string
	Bytes []byte // nil for bss reservations
	Size  int    // byte count; for bss this is the reservation size
	Align int
}

// Image is the fully laid-out byte-code image: one ordered blob list per
// section, in the fixed text/ro_data/data/bss order the emitter guarantees.
type Image struct {
	Text   []Blob
	RoData []Blob
	Data   []Blob
	Bss    []Blob
}

// New returns an empty Image.
func New() *Image { return &Image{} }

// Append adds blob to the named section, preserving emission order.
func (img *Image) Append(s Section, blob Blob) {
	switch s {
	case SectionText:
		img.Text = append(img.Text, blob)
	case SectionRoData:
		img.RoData = append(img.RoData, blob)
	case SectionData:
		img.Data = append(img.Data, blob)
	case SectionBss:
		img.Bss = append(img.Bss, blob)
	}
}

// Layout computes each blob's offset within its section, honoring each
// blob's alignment directive, and returns the total size per section.
type Layout struct {
	Offsets map[string]int // label -> byte offset within its section
	Sizes   map[Section]int
}

// ComputeLayout walks every section in fixed order and assigns offsets.
func (img *Image) ComputeLayout() Layout {
	l := Layout{Offsets: make(map[string]int), Sizes: make(map[Section]int)}
	l.Sizes[SectionText] = layoutSection(img.Text, l.Offsets)
	l.Sizes[SectionRoData] = layoutSection(img.RoData, l.Offsets)
	l.Sizes[SectionData] = layoutSection(img.Data, l.Offsets)
	l.Sizes[SectionBss] = layoutSection(img.Bss, l.Offsets)
	return l
}

func layoutSection(blobs []Blob, offsets map[string]int) int {
	cursor := 0
	for _, b := range blobs {
		align := b.Align
		if align <= 1 {
			align = 1
		}
		if rem := cursor % align; rem != 0 {
			cursor += align - rem
		}
		offsets[b.Label] = cursor
		size := b.Size
		if size == 0 {
			size = len(b.Bytes)
		}
		cursor += size
	}
	return cursor
}

// Digest is a stable, order-sensitive per-section content hash over each
// blob's label, alignment and bytes. internal/store does not use it; its
// compile cache hashes module source with store.Digest instead.
func (img *Image) Digest(s Section, hash func([]byte) string) string {
	var blobs []Blob
	switch s {
	case SectionText:
		blobs = img.Text
	case SectionRoData:
		blobs = img.RoData
	case SectionData:
		blobs = img.Data
	case SectionBss:
		blobs = img.Bss
	}
	var buf []byte
	for _, b := range blobs {
		buf = append(buf, []byte(fmt.Sprintf("%s:%d:", b.Label, b.Align))...)
		buf = append(buf, b.Bytes...)
	}
	return hash(buf)
}
