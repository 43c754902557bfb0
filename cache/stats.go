package cache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	// Hits is the number of lookups that returned an unexpired entry.
	Hits int64 `json:"hits"`

	// Misses is the number of lookups that found nothing usable,
	// including lookups that hit an expired entry.
	Misses int64 `json:"misses"`

	// Sets is the number of successful inserts or overwrites.
	Sets int64 `json:"sets"`

	// Evictions is the number of entries removed by capacity pressure
	// or by an expired-entry sweep.
	Evictions int64 `json:"evictions"`

	// Entries is the number of entries currently stored, expired or not.
	Entries int `json:"entries"`
}

// HitRate returns the hit percentage in [0, 100]. A cache that has never
// been read reports 0.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
