// Package validation checks wizard field values against the rules of a
// resolved schema.WizardDefinition.
//
// ValidateStep only evaluates the fields placed in one step. Conditions and
// conditional bounds may read any value in the map, so a later step can
// depend on a choice committed earlier without that earlier step being
// validated again.
package validation
