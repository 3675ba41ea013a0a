package catalogue

import (
	"fmt"
	"regexp"
)

// MatcherKind tags the variant held by a Matcher.
type MatcherKind int

const (
	// KindNull matches only the absent (empty) value.
	KindNull MatcherKind = iota
	// KindLiteral matches one exact value.
	KindLiteral
	// KindPattern matches values whose prefix matches a regular expression.
	KindPattern
	// KindSameAsParent takes its value from the parent node.
	KindSameAsParent
)

// SameAsParentKeyword is the catalogue spelling of KindSameAsParent.
const SameAsParentKeyword = "same_as_parent"

func (k MatcherKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindLiteral:
		return "literal"
	case KindPattern:
		return "pattern"
	case KindSameAsParent:
		return SameAsParentKeyword
	default:
		return "unknown"
	}
}

// Matcher is one field constraint of a relationship node.
type Matcher struct {
	kind  MatcherKind
	value string
	re    *regexp.Regexp
}

// Null matches the absent value.
func Null() Matcher { return Matcher{kind: KindNull} }

// Literal matches v exactly.
func Literal(v string) Matcher { return Matcher{kind: KindLiteral, value: v} }

// SameAsParent defers to the parent node's value.
func SameAsParent() Matcher { return Matcher{kind: KindSameAsParent} }

// Pattern compiles expr anchored at the start of the value.
func Pattern(expr string) (Matcher, error) {
	re, err := regexp.Compile("^(?:" + expr + ")")
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Matcher{kind: KindPattern, value: expr, re: re}, nil
}

// MustPattern is Pattern that panics on a bad expression. For static catalogues.
func MustPattern(expr string) Matcher {
	m, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Matcher) Kind() MatcherKind { return m.kind }

// Value is the literal value or the pattern source.
func (m Matcher) Value() string { return m.value }

// Match reports whether v satisfies the matcher. SameAsParent must be resolved
// before matching and never matches on its own.
func (m Matcher) Match(v string) bool {
	switch m.kind {
	case KindNull:
		return v == ""
	case KindLiteral:
		return v != "" && v == m.value
	case KindPattern:
		return v != "" && m.re.MatchString(v)
	default:
		return false
	}
}

func (m Matcher) String() string {
	switch m.kind {
	case KindNull:
		return "None"
	case KindPattern:
		return "/" + m.value + "/"
	case KindSameAsParent:
		return SameAsParentKeyword
	default:
		return m.value
	}
}
