// Package primitives provides versioning utilities for Catalog.
package primitives

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeVersion computes a version for a Catalog.
// Priority: user-provided catalog.Version, else SHA256(catalog JSON)[:8] + timestamp.
func ComputeVersion(catalog *Catalog) string {
	if catalog.Version != "" {
		return catalog.Version
	}

	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Sprintf("invalid-%d", time.Now().Unix())
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x-%s", hash[:8], time.Now().UTC().Format("20060102T150405Z"))
}
