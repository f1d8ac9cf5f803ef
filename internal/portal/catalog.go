package portal

import (
	"sort"

	"github.com/muurk/captiveconfig/internal/wifi"
)

// DefaultCatalogCapacity is how many networks the config page lists
const DefaultCatalogCapacity = 16

// Catalog is a fixed-capacity list of scanned networks ordered by signal
// strength, strongest first. Indexes at or past Len are never valid.
type Catalog struct {
	capacity int
	entries  []wifi.AccessPoint
}

// NewCatalog creates an empty catalog. A non-positive capacity selects
// DefaultCatalogCapacity.
func NewCatalog(capacity int) *Catalog {
	if capacity <= 0 {
		capacity = DefaultCatalogCapacity
	}
	return &Catalog{
		capacity: capacity,
		entries:  make([]wifi.AccessPoint, 0, capacity),
	}
}

// Fill replaces the contents with aps sorted by RSSI descending and
// truncated to capacity. Networks with equal signal keep scan order.
// It returns how many networks were dropped.
func (c *Catalog) Fill(aps []wifi.AccessPoint) int {
	sorted := make([]wifi.AccessPoint, len(aps))
	copy(sorted, aps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RSSI > sorted[j].RSSI
	})

	dropped := 0
	if len(sorted) > c.capacity {
		dropped = len(sorted) - c.capacity
		sorted = sorted[:c.capacity]
	}

	c.entries = append(c.entries[:0], sorted...)
	return dropped
}

// Len returns the number of valid entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Cap returns the fixed capacity.
func (c *Catalog) Cap() int {
	return c.capacity
}

// At returns the entry at index, or false when index is out of range.
func (c *Catalog) At(index int) (wifi.AccessPoint, bool) {
	if index < 0 || index >= len(c.entries) {
		return wifi.AccessPoint{}, false
	}
	return c.entries[index], true
}

// All returns a copy of the valid entries in order.
func (c *Catalog) All() []wifi.AccessPoint {
	out := make([]wifi.AccessPoint, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup returns the strongest entry with the given SSID.
func (c *Catalog) Lookup(ssid string) (wifi.AccessPoint, bool) {
	for _, ap := range c.entries {
		if ap.SSID == ssid {
			return ap, true
		}
	}
	return wifi.AccessPoint{}, false
}

// Reset empties the catalog, keeping its capacity.
func (c *Catalog) Reset() {
	c.entries = c.entries[:0]
}
