package livecalls

// Reconcile filters the raw provider list down to one tenant's legs.
//
// Rules:
// - Legs whose channel does not match the fixed naming scheme are dropped.
// - Legs are kept only when AccountCode equals accountCode.
// - When extension is non-empty (agent view), legs must also match it.
// - State mapping never drops a leg; unknown raw states pass through.
//
// Pure function: no clocks, no I/O, deterministic for a given input.
func Reconcile(legs []Leg, accountCode, extension string) []Leg {
	out := make([]Leg, 0, len(legs))
	for _, l := range legs {
		ext, ok := ParseExtension(l.Channel)
		if !ok {
			continue
		}
		if l.AccountCode != accountCode {
			continue
		}
		if extension != "" && ext != extension {
			continue
		}
		l.Extension = ext
		out = append(out, l)
	}
	return out
}
