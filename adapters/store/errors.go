package store

import (
	"fmt"

	"github.com/layer-3/nametag/core"
)

// unavailable marks a backend failure as transient for the caller.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, core.ErrServiceUnavailable, err)
}
