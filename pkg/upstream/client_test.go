package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		ListTimeout: 5 * time.Second,
		ItemTimeout: time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c, srv
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://x"}, zerolog.Nop())
	require.Error(t, err)
}

func TestFetchCategories_SendsAPIKey(t *testing.T) {
	var gotBody map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/productos_categorias_consulta", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"categorias": []map[string]any{
				{"productos_categoriasid": 126, "descripcion": "Bebidas"},
			},
		})
	}))

	cats, err := c.FetchCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, 126, cats[0].ID)
	require.Equal(t, "Bebidas", cats[0].Description)
	require.Equal(t, "test-key", gotBody["api_key"])
}

func TestFetchProducts_EmptyListIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"productos": []any{}})
	}))

	products, err := c.FetchProductsByCategory(context.Background(), 126)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestFetchProducts_ServerErrorIsStatusError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detalle":"caido"}`))
	}))

	_, err := c.FetchProductsByCategory(context.Background(), 126)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Status)
	require.JSONEq(t, `{"detalle":"caido"}`, string(se.Body))
}

func TestFetchProducts_NetworkErrorIsUnavailable(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.FetchProductsByCategory(context.Background(), 126)
	require.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestFetchImages_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"informacion": true,
			"productos_imagenes": []map[string]any{
				{"imagen": "aW1nMQ=="},
				{"imagen": ""},
				{"imagen": "aW1nMg=="},
			},
		})
	}))

	images := c.FetchImages(context.Background(), 42)
	require.Equal(t, []string{"aW1nMQ==", "aW1nMg=="}, images, "empty entries are filtered")
	require.Equal(t, int32(2), calls.Load(), "exactly one retry")
}

func TestFetchImages_BothAttemptsFailDegradesToEmpty(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	images := c.FetchImages(context.Background(), 42)
	require.Empty(t, images)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchImages_NoDataFlag(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"informacion": false})
	}))

	require.Empty(t, c.FetchImages(context.Background(), 42))
}

func TestFetchStock_ResolvesConfiguredWarehouse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"existencias": []map[string]any{
				{"almacenesid": 1, "existencias": 7},
				{"almacenesid": 2, "existencias": 12},
			},
		})
	}))

	require.Equal(t, 12, c.FetchStock(context.Background(), 42, 2))
	require.Equal(t, 0, c.FetchStock(context.Background(), 42, 999), "unknown warehouse yields zero")
}

func TestFetchStock_ErrorDegradesToZero(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	require.Equal(t, 0, c.FetchStock(context.Background(), 42, 2))
}

func TestFetchWarehouses(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/almacenes_consulta", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"almacenes": []map[string]any{
				{"almacenesid": 2, "descripcion": "CEDI PROMOCIONAL"},
			},
		})
	}))

	ws, err := c.FetchWarehouses(context.Background())
	require.NoError(t, err)
	require.Len(t, ws, 1)
	require.Equal(t, 2, ws[0].ID)
}
