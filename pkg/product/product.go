// Package product defines the catalog record types flowing through the
// aggregation pipeline: raw upstream records, hydrated products and
// parent/variant groups.
package product

import (
	"encoding/json"
	"strings"
)

// Raw is a product record exactly as the upstream returns it. The upstream
// schema is not under our control, so all fields are carried through
// untouched and the few we care about are read through accessors.
type Raw map[string]any

// ID returns the product identifier, trying the known field names in
// priority order: productosid, productoid, id. Records without any of them
// are valid; they are hydrated with empty images and zero stock.
func (r Raw) ID() (int, bool) {
	for _, field := range []string{"productosid", "productoid", "id"} {
		if id, ok := toInt(r[field]); ok && id != 0 {
			return id, true
		}
	}
	return 0, false
}

// Code returns the product code used for parent/variant grouping.
func (r Raw) Code() string {
	if code, ok := r["productocodigo"].(string); ok {
		return code
	}
	return ""
}

// toInt normalizes the numeric types json.Unmarshal may produce.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

// Hydrated is a Raw record enriched with its compressed images and the
// resolved stock count for the configured warehouse. It is created once by
// the hydration pipeline and never mutated afterwards.
type Hydrated struct {
	Raw        Raw
	Images     []string
	TotalStock int
}

// MarshalJSON flattens the hydrated product into a single object: every
// upstream field passed through, plus imagenes_data and existenciastotales.
func (h Hydrated) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Raw)+2)
	for k, v := range h.Raw {
		out[k] = v
	}
	images := h.Images
	if images == nil {
		images = []string{}
	}
	out["imagenes_data"] = images
	out["existenciastotales"] = h.TotalStock
	return json.Marshal(out)
}

// Group is a set of product variants sharing a parent code.
type Group struct {
	ParentCode  string     `json:"codigo_padre"`
	HasVariants bool       `json:"tiene_variantes"`
	Variants    []Hydrated `json:"variantes"`
}

// ParentCode derives the grouping key from a product code: the substring
// before the first hyphen. A code without a hyphen, or with a leading
// hyphen, is its own parent code; index 0 is not a valid split point.
func ParentCode(code string) string {
	if i := strings.Index(code, "-"); i > 0 {
		return code[:i]
	}
	return code
}
