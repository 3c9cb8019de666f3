// Package hydrate turns raw product records into hydrated ones: images and
// stock fetched per product under a bounded fan-out, then all images pushed
// through the compression pool in a second phase. Per-item failures degrade
// that item to empty images / zero stock and never abort the batch.
package hydrate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"catalogbridge/pkg/imaging"
	"catalogbridge/pkg/product"
)

// Gateway is the slice of the upstream client the pipeline needs. Both
// calls degrade internally and never return errors.
type Gateway interface {
	FetchImages(ctx context.Context, productID int) []string
	FetchStock(ctx context.Context, productID, warehouseID int) int
}

// Pipeline hydrates product batches. The download limit bounds concurrent
// per-product hydrations; compression runs afterwards under the pool's own
// independent limit (the two phases scale differently: downloads are
// latency-bound, compression is CPU-bound).
type Pipeline struct {
	gw    Gateway
	pool  *imaging.Pool
	limit int
	log   zerolog.Logger
}

// New creates a Pipeline with at most limit concurrent product hydrations.
func New(gw Gateway, pool *imaging.Pool, limit int, log zerolog.Logger) *Pipeline {
	if limit <= 0 {
		limit = 100
	}
	return &Pipeline{gw: gw, pool: pool, limit: limit, log: log}
}

// Hydrate enriches every record with its compressed images and resolved
// stock. Results are reassembled by input index, so the output is 1:1 with
// the input regardless of completion order. Records without a resolvable
// identifier are hydrated with defaults without any network call.
func (p *Pipeline) Hydrate(ctx context.Context, products []product.Raw, warehouseID int) []product.Hydrated {
	start := time.Now()

	p.log.Info().
		Int("products", len(products)).
		Int("warehouse", warehouseID).
		Int("max_concurrent", p.limit).
		Msg("hydrating products with images and stock")

	images := make([][]string, len(products))
	stock := make([]int, len(products))
	withoutID := 0

	var g errgroup.Group
	g.SetLimit(p.limit)
	var mu sync.Mutex

	for i := range products {
		i := i
		g.Go(func() error {
			id, ok := products[i].ID()
			if !ok {
				mu.Lock()
				withoutID++
				mu.Unlock()
				return nil
			}
			// Images and stock for one product are independent; fetch both
			// at once and let either degrade without affecting the other.
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				images[i] = p.gw.FetchImages(ctx, id)
			}()
			go func() {
				defer wg.Done()
				stock[i] = p.gw.FetchStock(ctx, id, warehouseID)
			}()
			wg.Wait()
			return nil
		})
	}
	g.Wait()

	totalImages, withImages, totalStock := 0, 0, 0
	for i := range products {
		totalImages += len(images[i])
		if len(images[i]) > 0 {
			withImages++
		}
		totalStock += stock[i]
	}
	p.log.Info().
		Int("products", len(products)).
		Int("without_id", withoutID).
		Int("with_images", withImages).
		Int("images", totalImages).
		Int("total_stock", totalStock).
		Dur("elapsed", time.Since(start)).
		Msg("download phase finished")

	compressed := p.pool.CompressAll(ctx, images)

	out := make([]product.Hydrated, len(products))
	for i := range products {
		out[i] = product.Hydrated{
			Raw:        products[i],
			Images:     compressed[i],
			TotalStock: stock[i],
		}
	}

	p.log.Info().
		Int("products", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("hydration finished")

	return out
}
