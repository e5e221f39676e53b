package writeback

// Filter decides whether an incoming event is relevant to persistence.
// A Filter is immutable; the coordinator builds a new one on every SetConfig.
type Filter struct {
	enabled bool
	kinds   map[EventKind]struct{}
}

// NewFilter builds a Filter from the enabled flag and allowlist of cfg.
func NewFilter(cfg Config) Filter {
	kinds := make(map[EventKind]struct{}, len(cfg.WatchedEventKinds))
	for _, k := range cfg.WatchedEventKinds {
		kinds[k] = struct{}{}
	}
	return Filter{enabled: cfg.Enabled, kinds: kinds}
}

// IsRelevant returns true iff persistence is enabled and kind is watched.
func (f Filter) IsRelevant(kind EventKind) bool {
	if !f.enabled {
		return false
	}
	_, ok := f.kinds[kind]
	return ok
}
