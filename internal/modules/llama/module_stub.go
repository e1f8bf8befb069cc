//go:build !llama

package llama

import (
	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/status"
)

// New fails fast when the binary was built without the 'llama' tag. No
// mocked behavior in production binaries built without CGO support.
func New(cfg *modules.Config) (modules.Module, error) {
	return nil, status.Errorf(status.CodeUnavailable,
		"llama support not built (missing 'llama' build tag)")
}
