package livecalls

import "sort"

// DuplicateGroup reports an extension appearing in more than one simultaneous
// call leg. This is a switch-side anomaly that operators need to see; the legs
// are carried for display, never filtered out of the main list.
type DuplicateGroup struct {
	Extension string `json:"extension"`
	Count     int    `json:"count"`
	Legs      []Leg  `json:"legs"`
}

// FindDuplicates groups legs by parsed extension and returns every group with
// more than one member, sorted by extension for stable output.
//
// It holds no state across polls: a duplicate that resolves simply stops
// appearing on the next evaluation.
func FindDuplicates(legs []Leg) []DuplicateGroup {
	byExt := make(map[string][]Leg)
	for _, l := range legs {
		ext, ok := ParseExtension(l.Channel)
		if !ok {
			continue
		}
		byExt[ext] = append(byExt[ext], l)
	}

	var out []DuplicateGroup
	for ext, group := range byExt {
		if len(group) <= 1 {
			continue
		}
		out = append(out, DuplicateGroup{Extension: ext, Count: len(group), Legs: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })
	return out
}
