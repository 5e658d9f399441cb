//go:build !embed

package frontend

import "net/http"

// Handler returns nil when the binary was built without the embed tag.
func Handler() http.Handler {
	return nil
}
