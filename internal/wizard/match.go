package wizard

import "strings"

// Matcher decides whether a template safety-control entry refers to a
// catalogue item. Isolated behind an interface so the predicate can be
// swapped for a stricter matcher without touching the merge orchestration.
type Matcher interface {
	Match(catalogueItem, templateItem string) bool
}

// SubstringMatcher matches when either label contains the other,
// case-insensitively. Deliberately not edit-distance or tokenization: the
// looseness is part of the template contract.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(catalogueItem, templateItem string) bool {
	a := strings.ToLower(strings.TrimSpace(catalogueItem))
	b := strings.ToLower(strings.TrimSpace(templateItem))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
