// Package testutil holds small helpers shared by tests.
package testutil

// Ptr returns a pointer to v, for optional manifest fields in table tests.
func Ptr[T any](v T) *T { return &v }
