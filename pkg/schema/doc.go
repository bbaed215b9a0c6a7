// Package schema declares wizard definitions and resolves them by
// discriminator. A Registry holds one WizardDefinition per discriminator
// value (account type, listing purpose, ...) for a single wizard kind; a
// Catalog groups registries by kind and is usually loaded from YAML template
// documents with LoadFS.
//
// Definitions are validated when registered: the fields referenced by the
// steps must be exactly the fields the definition declares, every field
// appears in one step only, and every condition compiles.
package schema
