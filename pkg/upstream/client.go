// Package upstream wraps the Perseo catalog API: category, product, image,
// stock and warehouse queries. Every call authenticates with the shared
// api_key field in the request body; the key never reaches callers of this
// package's results.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"catalogbridge/pkg/product"
)

// ErrUnavailable marks network-level failures talking to the upstream:
// connection refused, DNS, timeout.
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError is an upstream reply with a server-side error status (>=500).
// Replies below 500 are decoded normally, matching the upstream's habit of
// reporting "no data" conditions inside 4xx payloads.
type StatusError struct {
	Status int
	Body   json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Category is one entry of the upstream category listing.
type Category struct {
	ID          int    `json:"productos_categoriasid"`
	Description string `json:"descripcion"`
}

// Warehouse is one entry of the upstream warehouse listing.
type Warehouse struct {
	ID          int    `json:"almacenesid"`
	Description string `json:"descripcion"`
}

// Config holds the connection settings for a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// ListTimeout bounds the bulk category/product listing calls.
	ListTimeout time.Duration
	// ItemTimeout bounds each per-product image/stock call; the single
	// retry of those calls runs with this timeout doubled.
	ItemTimeout time.Duration
}

// Client is the upstream gateway. It holds no state beyond the connection
// settings; all caching happens in the layers above.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	listTimeout time.Duration
	itemTimeout time.Duration
	log         zerolog.Logger
}

// New creates a Client. BaseURL and APIKey are required.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("upstream: api key is required")
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = 30 * time.Second
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		http:        &http.Client{},
		listTimeout: cfg.ListTimeout,
		itemTimeout: cfg.ItemTimeout,
		log:         log,
	}, nil
}

// postJSON sends an authenticated POST to the given path and decodes the
// reply into out. Statuses below 500 are decoded; 500 and above become a
// StatusError carrying the reply body.
func (c *Client) postJSON(ctx context.Context, path string, params map[string]any, timeout time.Duration, out any) error {
	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["api_key"] = c.apiKey

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return &StatusError{Status: resp.StatusCode, Body: raw}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s reply: %w", path, err)
	}
	return nil
}

// FetchCategories returns the full upstream category listing. No retry.
func (c *Client) FetchCategories(ctx context.Context) ([]Category, error) {
	var reply struct {
		Categories []Category `json:"categorias"`
	}
	err := c.postJSON(ctx, "/productos_categorias_consulta", map[string]any{
		"descripcion": "",
	}, c.listTimeout, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Categories, nil
}

// FetchProductsByCategory returns the raw product records of a category.
// An empty list is a successful reply. No retry.
func (c *Client) FetchProductsByCategory(ctx context.Context, categoryID int) ([]product.Raw, error) {
	var reply struct {
		Products []product.Raw `json:"productos"`
	}
	err := c.postJSON(ctx, "/productos_consulta", map[string]any{
		"categoriasid":     categoryID,
		"usuario_creacion": "ADMIN",
		"dispositivo":      "API",
	}, c.listTimeout, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Products, nil
}

// FetchImages returns the base64-encoded images of a product, in upstream
// order. One retry with a doubled timeout, then degrade to no images; this
// call never fails the batch it belongs to.
func (c *Client) FetchImages(ctx context.Context, productID int) []string {
	images, err := retry(ctx, c.itemTimeout, func(ctx context.Context, timeout time.Duration) ([]string, error) {
		return c.fetchImagesOnce(ctx, productID, timeout)
	})
	if err != nil {
		c.log.Debug().Err(err).Int("productosid", productID).Msg("image fetch degraded to empty")
		return nil
	}
	return images
}

func (c *Client) fetchImagesOnce(ctx context.Context, productID int, timeout time.Duration) ([]string, error) {
	var reply struct {
		HasData bool `json:"informacion"`
		Images  []struct {
			Image string `json:"imagen"`
		} `json:"productos_imagenes"`
	}
	err := c.postJSON(ctx, "/productos_imagenes_consulta", map[string]any{
		"productosid": productID,
	}, timeout, &reply)
	if err != nil {
		return nil, err
	}
	if !reply.HasData {
		return nil, nil
	}
	images := make([]string, 0, len(reply.Images))
	for _, img := range reply.Images {
		if img.Image != "" {
			images = append(images, img.Image)
		}
	}
	return images, nil
}

// FetchStock returns the stock count of a product in the given warehouse.
// One retry with a doubled timeout, then degrade to zero. A warehouse with
// no recorded entry also yields zero.
func (c *Client) FetchStock(ctx context.Context, productID, warehouseID int) int {
	stock, err := retry(ctx, c.itemTimeout, func(ctx context.Context, timeout time.Duration) (int, error) {
		return c.fetchStockOnce(ctx, productID, warehouseID, timeout)
	})
	if err != nil {
		c.log.Debug().Err(err).Int("productosid", productID).Msg("stock fetch degraded to zero")
		return 0
	}
	return stock
}

func (c *Client) fetchStockOnce(ctx context.Context, productID, warehouseID int, timeout time.Duration) (int, error) {
	var reply struct {
		Entries []struct {
			WarehouseID int     `json:"almacenesid"`
			Quantity    float64 `json:"existencias"`
		} `json:"existencias"`
	}
	err := c.postJSON(ctx, "/existencia_producto", map[string]any{
		"productosid": productID,
	}, timeout, &reply)
	if err != nil {
		return 0, err
	}
	for _, e := range reply.Entries {
		if e.WarehouseID == warehouseID {
			if e.Quantity < 0 {
				return 0, nil
			}
			return int(e.Quantity), nil
		}
	}
	return 0, nil
}

// FetchWarehouses returns the upstream warehouse listing.
func (c *Client) FetchWarehouses(ctx context.Context) ([]Warehouse, error) {
	var reply struct {
		Warehouses []Warehouse `json:"almacenes"`
	}
	err := c.postJSON(ctx, "/almacenes_consulta", nil, c.itemTimeout, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Warehouses, nil
}
