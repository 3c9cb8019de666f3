package imaging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pool runs the codec over many images with bounded concurrency. The limit
// is independent of the download fan-out: compression is CPU-bound and is
// pooled globally across all products rather than per product, so one
// image-heavy product cannot starve the rest.
type Pool struct {
	codec Codec
	limit int
	log   zerolog.Logger
}

// NewPool creates a pool applying codec with at most limit concurrent
// invocations.
func NewPool(codec Codec, limit int, log zerolog.Logger) *Pool {
	if limit <= 0 {
		limit = 50
	}
	return &Pool{codec: codec, limit: limit, log: log}
}

// CompressAll compresses every image in the per-product slices, preserving
// shape: result[i][j] is the compressed form of images[i][j] regardless of
// completion order. Slots without images stay nil.
func (p *Pool) CompressAll(ctx context.Context, images [][]string) [][]string {
	start := time.Now()

	total := 0
	out := make([][]string, len(images))
	for i := range images {
		if len(images[i]) == 0 {
			continue
		}
		out[i] = make([]string, len(images[i]))
		total += len(images[i])
	}

	if total == 0 {
		return out
	}

	p.log.Info().
		Int("images", total).
		Int("max_concurrent", p.limit).
		Msg("compressing images in global pool")

	var g errgroup.Group
	g.SetLimit(p.limit)

	for i := range images {
		for j := range images[i] {
			if ctx.Err() != nil {
				out[i][j] = images[i][j]
				continue
			}
			i, j := i, j
			g.Go(func() error {
				// Each task owns exactly one slot, so no locking is needed.
				out[i][j] = p.codec.Compress(images[i][j])
				return nil
			})
		}
	}
	g.Wait()

	elapsed := time.Since(start)
	p.log.Info().
		Int("images", total).
		Dur("elapsed", elapsed).
		Msg("compression pool finished")

	return out
}
