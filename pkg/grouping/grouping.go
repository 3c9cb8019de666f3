// Package grouping reshapes a flat hydrated product list into parent/variant
// groups keyed by SKU prefix.
package grouping

import "catalogbridge/pkg/product"

// Group reduces the list into groups in a single pass. Output order is the
// first-occurrence order of each parent code in the input; callers depend on
// it. A group has variants exactly when it holds two or more members.
func Group(list []product.Hydrated) []*product.Group {
	parents := make(map[string]*product.Group)
	results := make([]*product.Group, 0)

	for _, item := range list {
		parentCode := product.ParentCode(item.Raw.Code())

		group, ok := parents[parentCode]
		if !ok {
			group = &product.Group{ParentCode: parentCode}
			parents[parentCode] = group
			results = append(results, group)
		}

		group.Variants = append(group.Variants, item)
		if len(group.Variants) == 2 {
			group.HasVariants = true
		}
	}

	return results
}
