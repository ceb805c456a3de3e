// Package dto defines the API request and response types.
//
// Request types carry `path:"..."` and `query:"..."` struct tags for
// parameter binding by the server wrappers, and implement Validatable for
// the checks that do not need storage. Field ranges are enforced again by
// the models on write.
package dto

// Validatable is implemented by every request type. The Wrap functions use it
// as a type constraint.
type Validatable interface {
	Validate() error
}
