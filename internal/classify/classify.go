// Package classify decides whether an acknowledgment passage names one of
// the configured terms.
package classify

import "strings"

// Classifier matches passages against a term list. Matching is a
// case-sensitive substring test.
type Classifier struct {
	terms []string
}

// New returns a Classifier for terms. Empty terms are ignored.
func New(terms []string) *Classifier {
	kept := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			kept = append(kept, t)
		}
	}
	return &Classifier{terms: kept}
}

// Match returns the first term found in passage.
func (c *Classifier) Match(passage string) (string, bool) {
	if passage == "" {
		return "", false
	}
	for _, term := range c.terms {
		if strings.Contains(passage, term) {
			return term, true
		}
	}
	return "", false
}

// Classify reports whether passage contains any term.
func (c *Classifier) Classify(passage string) bool {
	_, ok := c.Match(passage)
	return ok
}

// Terms returns the configured terms in match order.
func (c *Classifier) Terms() []string {
	return append([]string(nil), c.terms...)
}
