// Package paths provides normalization and containment helpers for
// filesystem paths.
//
// Every path that crosses a trust boundary goes through this package before
// it is compared, stored, or probed, so the rest of the backend only ever
// handles absolute, cleaned paths.
//
// # Usage
//
//	import "github.com/andeslabs/cryptoqr/backend/internal/shared/paths"
//
//	abs, err := paths.Normalize("~/qr_codes")
//
//	// Whitelist containment
//	if paths.Within(candidate, allowedRoot) {
//	    // candidate is allowedRoot or nested under it
//	}
package paths
