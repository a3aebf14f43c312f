package config

import (
	"os"
	"strings"
)

// StrictTransferImmutability enables guardrails on the transfer audit log:
// stock_transfers rows cannot be edited or deleted after insert; corrections
// happen through new transfers in the opposite direction.
//
// Set via env:
// - STRICT_TRANSFER_IMMUTABLE=true
func StrictTransferImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_TRANSFER_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StorefrontSyncEnabled gates publishing of integration events to the
// storefront-sync topic. Off by default outside deployed environments.
//
// Set via env:
// - STOREFRONT_SYNC_ENABLED=true
func StorefrontSyncEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOREFRONT_SYNC_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
