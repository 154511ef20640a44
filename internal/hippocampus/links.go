package hippocampus

import "github.com/vestige-mem/vestige/pkg/types"

// UpsertLink adds or updates a typed association keyed by
// (from, to, type): updates overwrite strength, which is clamped to
// [0,1]. Returns the updated link slice.
func UpsertLink(links []types.IndexLink, targetID string, strength float64, linkType types.EdgeType) []types.IndexLink {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	for i, l := range links {
		if l.TargetID == targetID && l.LinkType == linkType {
			links[i].Strength = strength
			return links
		}
	}
	return append(links, types.IndexLink{TargetID: targetID, Strength: strength, LinkType: linkType})
}

// HasAssociations mirrors the `links.len > 0` flag.
func HasAssociations(links []types.IndexLink) bool {
	return len(links) > 0
}
