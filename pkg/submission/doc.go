// Package submission turns a validated wizard into a multipart POST.
//
// BuildPayload flattens the value snapshot into form values and file parts,
// leaving out every field whose condition does not hold. The Coordinator
// guards the request: it refuses to run without a bearer token, allows one
// request in flight at a time (a concurrent Submit joins the pending one),
// and turns every outcome into a Result plus a notification.
package submission
