package image_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/image"
)

func TestAppendPreservesOrderPerSection(t *testing.T) {
	img := image.New()
	img.Append(image.SectionText, image.Blob{Label: "main"})
	img.Append(image.SectionText, image.Blob{Label: "helper"})
	img.Append(image.SectionBss, image.Blob{Label: "counter", Size: 8})

	require.Len(t, img.Text, 2)
	assert.Equal(t, "main", img.Text[0].Label)
	assert.Equal(t, "helper", img.Text[1].Label)
	require.Len(t, img.Bss, 1)
}

func TestComputeLayoutHonorsAlignment(t *testing.T) {
	img := image.New()
	img.Append(image.SectionRoData, image.Blob{Label: "s0", Bytes: []byte("hi"), Align: image.AlignString})
	img.Append(image.SectionRoData, image.Blob{Label: "s1", Bytes: []byte("x"), Align: image.AlignString})

	layout := img.ComputeLayout()

	assert.Equal(t, 0, layout.Offsets["s0"])
	assert.Equal(t, 4, layout.Offsets["s1"], "s1 must start on the next 4-byte boundary after s0's 2 bytes")
	assert.Equal(t, 5, layout.Sizes[image.SectionRoData])
}

func TestComputeLayoutUsesSizeForBssReservations(t *testing.T) {
	img := image.New()
	img.Append(image.SectionBss, image.Blob{Label: "buf", Size: 64, Align: 1})

	layout := img.ComputeLayout()

	assert.Equal(t, 0, layout.Offsets["buf"])
	assert.Equal(t, 64, layout.Sizes[image.SectionBss])
}

func TestDigestIsStableAndOrderSensitive(t *testing.T) {
	hash := func(b []byte) string { return string(b) }

	a := image.New()
	a.Append(image.SectionData, image.Blob{Label: "x", Bytes: []byte{1, 2}})
	a.Append(image.SectionData, image.Blob{Label: "y", Bytes: []byte{3}})

	b := image.New()
	b.Append(image.SectionData, image.Blob{Label: "y", Bytes: []byte{3}})
	b.Append(image.SectionData, image.Blob{Label: "x", Bytes: []byte{1, 2}})

	assert.Equal(t, a.Digest(image.SectionData, hash), a.Digest(image.SectionData, hash), "digest is deterministic for the same image")
	assert.NotEqual(t, a.Digest(image.SectionData, hash), b.Digest(image.SectionData, hash), "digest is sensitive to blob order")
}

func TestSectionString(t *testing.T) {
	assert.Equal(t, "text", image.SectionText.String())
	assert.Equal(t, "ro_data", image.SectionRoData.String())
	assert.Equal(t, "data", image.SectionData.String())
	assert.Equal(t, "bss", image.SectionBss.String())
	assert.Equal(t, "unknown", image.Section(99).String())
}
