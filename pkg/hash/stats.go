package hash

import (
	"fmt"
	"io"
)

// counters tracks operations since the index was opened.
type counters struct {
	inserts, updates, removes, searches uint64
	splits, merges, grows               uint64
}

// Stats is a snapshot of an index's shape and activity.
type Stats struct {
	GlobalDepth  uint64
	CatalogSize  int
	LiveBuckets  int
	FreeSlots    int
	TotalSlots   int
	Units        int
	Entries      int
	Inserts      uint64
	Updates      uint64
	Removes      uint64
	Searches     uint64
	Splits       uint64
	Merges       uint64
	CatalogGrows uint64
}

// GetStats returns the table's current shape and operation counts.
func (table *HashTable) GetStats() Stats {
	stats := Stats{
		GlobalDepth:  table.meta.globalDepth(),
		CatalogSize:  table.catalog.size(),
		FreeSlots:    table.space.numFree(),
		TotalSlots:   table.space.numSlots(),
		Units:        table.pager.GetNumUnits(),
		Inserts:      table.stats.inserts,
		Updates:      table.stats.updates,
		Removes:      table.stats.removes,
		Searches:     table.stats.searches,
		Splits:       table.stats.splits,
		Merges:       table.stats.merges,
		CatalogGrows: table.stats.grows,
	}
	for i := 0; i < table.catalog.size(); i++ {
		bucket := table.space.bucket(table.catalog.get(i).handle)
		if isCanonical(i, bucket) {
			stats.LiveBuckets++
			stats.Entries += bucket.NumKeys()
		}
	}
	return stats
}

// Print writes the snapshot as one "name: value" line per field.
func (stats Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "global depth: %d\n", stats.GlobalDepth)
	fmt.Fprintf(w, "catalog size: %d\n", stats.CatalogSize)
	fmt.Fprintf(w, "buckets: %d live, %d free, %d total in %d units\n",
		stats.LiveBuckets, stats.FreeSlots, stats.TotalSlots, stats.Units)
	fmt.Fprintf(w, "entries: %d\n", stats.Entries)
	fmt.Fprintf(w, "inserts: %d updates: %d removes: %d searches: %d\n",
		stats.Inserts, stats.Updates, stats.Removes, stats.Searches)
	fmt.Fprintf(w, "splits: %d merges: %d catalog grows: %d\n", stats.Splits, stats.Merges, stats.CatalogGrows)
}
