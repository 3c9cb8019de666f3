// Package imaging compresses product images: a codec that resizes and
// re-encodes a single image, and a bounded pool that applies it across all
// images of a batch. Compression is best-effort throughout; no input ever
// fails, it is returned unchanged instead.
package imaging

import (
	"bytes"
	"encoding/base64"

	"github.com/disintegration/imaging"
)

// Codec holds the compression policy for a single image.
type Codec struct {
	// MaxSize caps both dimensions; aspect ratio is preserved and images
	// already within bounds are never upscaled.
	MaxSize int
	// Quality is the lossy re-encode quality (1-100).
	Quality int
	// SkipSmall skips transcoding entirely for inputs whose encoded size is
	// below MinEncodedSize. Throughput optimization, not a correctness rule.
	SkipSmall      bool
	MinEncodedSize int
}

// Compress re-encodes a base64 image to a compact lossy form. On any decode
// or encode failure the original input is returned unchanged.
func (c Codec) Compress(encoded string) string {
	if encoded == "" {
		return encoded
	}
	if c.SkipSmall && len(encoded) < c.MinEncodedSize {
		return encoded
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return encoded
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return encoded
	}

	// NearestNeighbor is the cheapest filter; output quality is secondary
	// to keeping the pipeline fast.
	resized := imaging.Fit(img, c.MaxSize, c.MaxSize, imaging.NearestNeighbor)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return encoded
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
