package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"catalogbridge/pkg/cache"
	"catalogbridge/pkg/hydrate"
	"catalogbridge/pkg/imaging"
	"catalogbridge/pkg/product"
	"catalogbridge/pkg/upstream"
)

type fakeGateway struct {
	categories []upstream.Category
	catErr     error
	products   map[int][]product.Raw
	prodErr    error

	catCalls  int
	prodCalls int

	images map[int][]string
	stock  map[int]int
}

func (f *fakeGateway) FetchCategories(ctx context.Context) ([]upstream.Category, error) {
	f.catCalls++
	return f.categories, f.catErr
}

func (f *fakeGateway) FetchProductsByCategory(ctx context.Context, categoryID int) ([]product.Raw, error) {
	f.prodCalls++
	if f.prodErr != nil {
		return nil, f.prodErr
	}
	return f.products[categoryID], nil
}

func (f *fakeGateway) FetchImages(ctx context.Context, productID int) []string {
	return f.images[productID]
}

func (f *fakeGateway) FetchStock(ctx context.Context, productID, warehouseID int) int {
	return f.stock[productID]
}

type fakeWarehouses struct {
	known map[int]string
	calls []int
}

func (f *fakeWarehouses) Validate(ctx context.Context, id int) (string, bool) {
	f.calls = append(f.calls, id)
	name, ok := f.known[id]
	return name, ok
}

func newService(gw *fakeGateway, wh *fakeWarehouses) *Service {
	codec := imaging.Codec{MaxSize: 250, Quality: 65, SkipSmall: true, MinEncodedSize: 1 << 20}
	pool := imaging.NewPool(codec, 8, zerolog.Nop())
	pipeline := hydrate.New(gw, pool, 8, zerolog.Nop())
	return New(gw, pipeline, wh, cache.New(time.Minute), cache.New(time.Minute), 2, zerolog.Nop())
}

func scenarioGateway() *fakeGateway {
	return &fakeGateway{
		categories: []upstream.Category{
			{ID: 126, Description: "Bebidas"},
			{ID: 130, Description: "  Snacks  "},
		},
		products: map[int][]product.Raw{
			126: {
				{"productosid": float64(1), "productocodigo": "A1-red"},
				{"productosid": float64(2), "productocodigo": "A1-blue"},
				{"productosid": float64(3), "productocodigo": "B2"},
			},
		},
		images: map[int][]string{
			1: {"img1"},
			2: {"img2"},
			3: {"img3"},
		},
		stock: map[int]int{1: 5, 2: 0, 3: 12},
	}
}

func TestProductsByCategory_EndToEnd(t *testing.T) {
	gw := scenarioGateway()
	wh := &fakeWarehouses{known: map[int]string{2: "CEDI"}}
	svc := newService(gw, wh)

	res, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)

	require.True(t, res.Success)
	require.Equal(t, 126, res.CategoryQueried)
	require.Equal(t, 2, res.TotalGroups)
	require.Len(t, res.Items, 2)

	a1 := res.Items[0]
	require.Equal(t, "A1", a1.ParentCode)
	require.True(t, a1.HasVariants)
	require.Len(t, a1.Variants, 2)
	require.Equal(t, "A1-red", a1.Variants[0].Raw.Code())
	require.Equal(t, 5, a1.Variants[0].TotalStock)
	require.Equal(t, []string{"img1"}, a1.Variants[0].Images)
	require.Equal(t, "A1-blue", a1.Variants[1].Raw.Code())
	require.Equal(t, 0, a1.Variants[1].TotalStock)

	b2 := res.Items[1]
	require.Equal(t, "B2", b2.ParentCode)
	require.False(t, b2.HasVariants)
	require.Len(t, b2.Variants, 1)
	require.Equal(t, 12, b2.Variants[0].TotalStock)

	require.NotZero(t, res.Fingerprint)

	// The validator saw the configured default warehouse.
	require.Equal(t, []int{2}, wh.calls)
}

func TestProductsByCategory_CacheHitSkipsUpstream(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	first, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)
	second, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)

	require.Equal(t, 1, gw.prodCalls, "second query must be a cache hit")
	require.Same(t, first, second)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestProductsByCategory_ByName(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	// Case-insensitive, trimmed match on both sides.
	res, err := svc.ProductsByCategory(context.Background(), "  bebidas ", 0)
	require.NoError(t, err)
	require.Equal(t, 126, res.CategoryQueried)

	_, err = svc.ProductsByCategory(context.Background(), "no such category", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductsByCategory_UnknownWarehouseRejectedBeforeFetch(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	_, err := svc.ProductsByCategory(context.Background(), "126", 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, gw.prodCalls, "product fetch must not happen for an unknown warehouse")
}

func TestProductsByCategory_NegativeWarehouseIsInvalidInput(t *testing.T) {
	svc := newService(scenarioGateway(), &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	_, err := svc.ProductsByCategory(context.Background(), "126", -1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductsByCategory_EmptyCategoryIsNotFound(t *testing.T) {
	gw := scenarioGateway()
	gw.products[40] = nil
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	_, err := svc.ProductsByCategory(context.Background(), "40", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductsByCategory_UpstreamErrors(t *testing.T) {
	gw := scenarioGateway()
	gw.prodErr = upstream.ErrUnavailable
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	_, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	gw.prodErr = &upstream.StatusError{Status: http.StatusBadGateway, Body: []byte(`{"x":1}`)}
	_, err = svc.ProductsByCategory(context.Background(), "126", 0)
	var rejected *UpstreamRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusBadGateway, rejected.Status)
}

func TestResolveCategory_InvalidInput(t *testing.T) {
	svc := newService(scenarioGateway(), &fakeWarehouses{})

	_, err := svc.ResolveCategory(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ResolveCategory(context.Background(), "-5")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCategoriesSimple_SharesFullListCache(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{})

	simple, err := svc.CategoriesSimple(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, simple.Total)
	require.Equal(t, CategorySummary{ID: 126, Name: "Bebidas"}, simple.Categories[0])

	// Resolution by name reuses the already-fetched full list.
	_, err = svc.ResolveCategory(context.Background(), "snacks")
	require.NoError(t, err)
	require.Equal(t, 1, gw.catCalls)
}

func TestCategoriesFull_UpstreamUnavailable(t *testing.T) {
	gw := scenarioGateway()
	gw.catErr = upstream.ErrUnavailable
	svc := newService(gw, &fakeWarehouses{})

	_, err := svc.CategoriesFull(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestStatsAndFlush(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	_, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)
	_, err = svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)

	stats := svc.Stats()
	require.Equal(t, 1, stats.Products.Keys)
	require.Equal(t, uint64(1), stats.Products.Hits)
	require.Equal(t, 60, stats.Products.TTL)

	svc.FlushCaches()
	stats = svc.Stats()
	require.Zero(t, stats.Products.Keys)
	require.Zero(t, stats.Categories.Keys)

	_, err = svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)
	require.Equal(t, 2, gw.prodCalls, "flush forces a rebuild")
}

func TestProductsByCategory_VariantCountMatchesInput(t *testing.T) {
	gw := scenarioGateway()
	svc := newService(gw, &fakeWarehouses{known: map[int]string{2: "CEDI"}})

	res, err := svc.ProductsByCategory(context.Background(), "126", 0)
	require.NoError(t, err)

	total := 0
	for _, g := range res.Items {
		total += len(g.Variants)
	}
	require.Equal(t, len(gw.products[126]), total)
}

func TestMapUpstreamErr_Internal(t *testing.T) {
	svc := newService(scenarioGateway(), &fakeWarehouses{})

	err := svc.mapUpstreamErr(errors.New("decode failed"), "fetch products")
	require.NotErrorIs(t, err, ErrUpstreamUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)
}
