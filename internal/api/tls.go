// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"os"
)

// CheckTLSConfig reports whether TLS should be enabled for the given
// cert/key paths. Both or neither must be set, and both files must
// exist; anything else is a configuration error.
func CheckTLSConfig(certPath, keyPath string) (bool, error) {
	if certPath == "" && keyPath == "" {
		return false, nil
	}
	if certPath == "" || keyPath == "" {
		return false, fmt.Errorf("server.tls_cert and server.tls_key must both be set (cert=%q, key=%q)", certPath, keyPath)
	}

	for name, path := range map[string]string{"tls_cert": certPath, "tls_key": keyPath} {
		if _, err := os.Stat(expandPath(path)); err != nil {
			return false, fmt.Errorf("server.%s: %w", name, err)
		}
	}
	return true, nil
}

// expandPath resolves a leading ~ against the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
