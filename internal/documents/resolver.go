// Package documents validates evidence references attached to condition
// verifications. References are opaque to the engine; a resolver decides
// whether they point at real stored documents.
package documents

import "context"

// Resolver checks that an evidence reference can be dereferenced.
type Resolver interface {
	Resolve(ctx context.Context, reference string) error
}
