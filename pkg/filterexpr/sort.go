package filterexpr

import (
	"fmt"
	"sort"
)

// Key extracts the ordering value of an item. ok=false marks a null.
type Key[T any] func(item T) (value float64, ok bool)

// SortSlice orders items in memory the way an ORDER BY on the schema's
// expressions would. Ties on both keys keep their input order.
func SortSlice[T any](items []T, ord Ordering, schema OrderSchema, keys map[string]Key[T]) error {
	primary, ok := keys[ord.PrimaryKey]
	if !ok {
		return fmt.Errorf("no key extractor for %q", ord.PrimaryKey)
	}
	secondary, ok := keys[ord.SecondaryKey]
	if !ok {
		return fmt.Errorf("no key extractor for %q", ord.SecondaryKey)
	}
	pNullsFirst := schema.Fields[ord.PrimaryKey].Nulls == "first"
	sNullsFirst := schema.Fields[ord.SecondaryKey].Nulls == "first"

	sort.SliceStable(items, func(i, j int) bool {
		if c := compareKey(primary, items[i], items[j], ord.PrimaryDesc, pNullsFirst); c != 0 {
			return c < 0
		}
		return compareKey(secondary, items[i], items[j], ord.SecondaryDesc, sNullsFirst) < 0
	})
	return nil
}

func compareKey[T any](key Key[T], a, b T, desc, nullsFirst bool) int {
	av, aok := key(a)
	bv, bok := key(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		if nullsFirst {
			return -1
		}
		return 1
	case !bok:
		if nullsFirst {
			return 1
		}
		return -1
	}
	c := 0
	switch {
	case av < bv:
		c = -1
	case av > bv:
		c = 1
	}
	if desc {
		c = -c
	}
	return c
}
