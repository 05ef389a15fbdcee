// Package scope implements a read-only source abstraction: a uniform
// view over either a plain directory or a zip archive of state files,
// re-expressed with Go's archive/zip since no available library reads
// zip archives more conveniently than the standard one.
package scope

import "context"

// Source is the uniform read-only interface over a content source
// holding a workflow's state files.
type Source interface {
	// Exists reports whether name is present in the scope.
	Exists(ctx context.Context, name string) (bool, error)
	// List returns every filename present in the scope.
	List(ctx context.Context) ([]string, error)
	// Read returns the UTF-8 text of name.
	Read(ctx context.Context, name string) (string, error)
	// Materialize extracts name to a filesystem path a script runner
	// can execute directly. The caller owns deletion of the result.
	Materialize(ctx context.Context, name string) (string, error)
}
