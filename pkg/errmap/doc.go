// Package errmap translates submission outcomes into failure.Error values.
//
// HTTP status codes select the failure kind. For 422 responses the body's
// field errors are matched against the fields of the active
// schema.WizardDefinition; the lowest step holding a failing field becomes
// the rewind target. Keys that match no field are folded into one form-level
// message so nothing the server reported is lost.
//
// Accepted body shapes:
//
//	{"message": "...", "errors": {"email": ["taken"], "images[0]": "too big"}}
//	{"errors": [{"field": "email", "message": "taken"}]}
//	{"error": "..."}
package errmap
