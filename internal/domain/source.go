package domain

// Region is the geographic classification of a news source.
type Region string

const (
	RegionUS   Region = "US"
	RegionINTL Region = "INTL"
)

const (
	DefaultUSQuota   = 12
	DefaultINTLQuota = 5
)

// DefaultQuota returns the per-cycle quota applied when none is configured.
func (r Region) DefaultQuota() int {
	if r == RegionUS {
		return DefaultUSQuota
	}
	return DefaultINTLQuota
}

// SourceProfile describes one configured source.
type SourceProfile struct {
	Name   string `json:"name"`
	Region Region `json:"region"`
	Quota  int    `json:"quota"`
	Feed   string `json:"feed,omitempty"`
}
