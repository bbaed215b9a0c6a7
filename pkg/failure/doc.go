// Package failure defines the error taxonomy shared by the wizard engine.
// Client-side validation, credential problems and every server or transport
// outcome are reported as *Error values tagged with a Kind, so callers can
// branch with errors.Is against the exported sentinels without string
// matching.
package failure
