package judge

import "strings"

// Comparator decides whether an actual output matches an expected one.
// The default policy trims, collapses internal whitespace runs and folds
// case; problems that need exact comparison (for example string-processing
// tasks) disable individual steps per problem.
type Comparator struct {
	TrimSpace     bool `json:"trimSpace"`
	CollapseSpace bool `json:"collapseSpace"`
	FoldCase      bool `json:"foldCase"`
}

func DefaultComparator() Comparator {
	return Comparator{TrimSpace: true, CollapseSpace: true, FoldCase: true}
}

// Normalize applies the comparator's enabled steps. Two outputs that differ
// only in leading/trailing whitespace, internal whitespace run length or
// letter case normalize to the same string under the default policy.
func (c Comparator) Normalize(s string) string {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if c.CollapseSpace {
		s = strings.Join(strings.Fields(s), " ")
	}
	if c.FoldCase {
		s = strings.ToLower(s)
	}
	return s
}

func (c Comparator) Equal(actual, expected string) bool {
	return c.Normalize(actual) == c.Normalize(expected)
}
