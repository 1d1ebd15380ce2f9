// Package predicate builds the small, closed tag predicates the
// tag-selection strategies test ways and relations against. Unlike a
// user-configurable filter, each predicate here is a fixed rule baked
// into one strategy, so the package offers plain constructors rather
// than a parsed configuration.
package predicate

import "github.com/wegman-software/osm-splitter/internal/osmdata"

// Tags reports whether a tag list matches a rule.
type Tags func(osmdata.Tags) bool

// HasAnyKey matches if any of the given keys is present, regardless of
// value — Cut_highway's rule, where the value is never inspected.
func HasAnyKey(keys ...string) Tags {
	return func(t osmdata.Tags) bool {
		return t.HasAny(keys...)
	}
}

// HasKeyValue matches an exact key/value pair.
func HasKeyValue(key, value string) Tags {
	return func(t osmdata.Tags) bool {
		return t.HasTag(key, value)
	}
}

// Any matches if any of the given rules matches.
func Any(rules ...Tags) Tags {
	return func(t osmdata.Tags) bool {
		for _, r := range rules {
			if r(t) {
				return true
			}
		}
		return false
	}
}
