// Package credentials supplies the bearer token used for submissions. The
// token lives in a persisted key-value Store; a Provider binds one key of the
// store and is handed to the submission coordinator at construction.
package credentials
