// Package condition evaluates the small boolean expressions used by field
// rules to decide whether a field applies, is required, or takes a
// conditional bound. Expressions read the wizard's current values:
//
//	representation_role == "legal_agent"
//	listing_purpose != "sale" && accepts_terms
//	!(area_unit == "hectare") || land_area >= 500
//
// Bare identifiers test truthiness. Missing values compare as null.
package condition
