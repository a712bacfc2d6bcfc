package model

import "time"

// RefreshRecord summarizes one completed refresh.
type RefreshRecord struct {
	ID            string    `json:"id"`
	FetchedAt     time.Time `json:"fetched_at"`
	HuaweiRows    int       `json:"huawei_rows"`
	ZTERows       int       `json:"zte_rows"`
	ClientMatches int       `json:"client_matches"`
}

// TotalRows returns the merged row count.
func (r RefreshRecord) TotalRows() int {
	return r.HuaweiRows + r.ZTERows
}

// DimensionCount represents grouped counts by a single dimension value
// (for example DEV or Gestor).
type DimensionCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// ClientIndex maps DEV_2 keys to their Cliente_puerto label. The first row
// seen for a key wins so a left join never duplicates alarm rows.
type ClientIndex struct {
	ports map[string]string
	keys  []string
}

// NewClientIndex creates an empty index.
func NewClientIndex() *ClientIndex {
	return &ClientIndex{ports: make(map[string]string)}
}

// Add records key -> label unless key is already present. It reports whether
// the entry was stored.
func (c *ClientIndex) Add(key, label string) bool {
	if _, dup := c.ports[key]; dup {
		return false
	}
	c.ports[key] = label
	c.keys = append(c.keys, key)
	return true
}

// Lookup returns the label for key.
func (c *ClientIndex) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.ports[key]
	return v, ok
}

// Len returns the number of distinct keys.
func (c *ClientIndex) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// SampleKeys returns up to n keys in load order.
func (c *ClientIndex) SampleKeys(n int) []string {
	if c == nil {
		return nil
	}
	if n > len(c.keys) {
		n = len(c.keys)
	}
	return append([]string(nil), c.keys[:n]...)
}
