// Package attachment manages the files selected for a wizard's file-set
// fields. The file lists live in the wizard's fieldstore.Store; the manager
// enforces the field's constraints when files are added, keeps every file
// under a stable identity, and renders previews in the background.
//
// Previews are applied by identity: a preview that arrives after its file
// was removed (or the manager was cleared) is discarded.
package attachment
