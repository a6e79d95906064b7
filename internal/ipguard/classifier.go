package ipguard

import "strings"

// Classifier decides whether a set of addresses belongs to one origin.
type Classifier struct{}

// NewClassifier returns the default classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// GroupsAreSimilar reports whether addresses look like a single origin.
//
// Addresses are bucketed by their leading segment. Inside a bucket every
// member must carry the same trailing segments; one disagreement makes the
// whole set dissimilar. Addresses that sit alone in their bucket never count
// against the set, so an empty set is similar.
func (c *Classifier) GroupsAreSimilar(addresses []string) bool {
	return GroupsAreSimilar(addresses)
}

// GroupsAreSimilar is the package-level form of Classifier.GroupsAreSimilar.
func GroupsAreSimilar(addresses []string) bool {
	groups := make(map[string][][]string)
	for _, raw := range addresses {
		segments := segmentsOf(raw)
		groups[segments[0]] = append(groups[segments[0]], segments)
	}

	for _, group := range groups {
		if !groupIsUniform(group) {
			return false
		}
	}
	return true
}

// groupIsUniform compares every member against the first one, skipping the
// shared leading segment. Members of different lengths never match.
func groupIsUniform(group [][]string) bool {
	first := group[0]
	for _, segments := range group[1:] {
		if len(segments) != len(first) {
			return false
		}
		for i := 1; i < len(first); i++ {
			if segments[i] != first[i] {
				return false
			}
		}
	}
	return true
}

// segmentsOf falls back to splitting on dots for stored values that no
// longer parse, so legacy rows still bucket deterministically.
func segmentsOf(raw string) []string {
	if addr, ok := ParseAddress(raw); ok {
		return addr.Segments()
	}
	return strings.Split(raw, ".")
}
