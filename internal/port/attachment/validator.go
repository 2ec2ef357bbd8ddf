// Package attachment defines the contract for the external file
// validation collaborator consulted when a review carries attachments.
package attachment

import "context"

// Validator checks review attachments before the review is accepted.
// Implementations own upload handling, content sniffing and signature
// checks; the review workflow only consumes the pass/fail verdict.
type Validator interface {
	// Validate returns nil if the attachments are acceptable. The value
	// is the review's "attachments" metadata entry, passed through
	// verbatim.
	Validate(ctx context.Context, attachments any) error
}
