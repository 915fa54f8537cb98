// Package builtin registers the bundled site descriptors. It lives apart from
// provider to avoid import cycles.
package builtin

import (
	"fmt"

	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/provider/astro"
	"github.com/Digital-Shane/guide-tidy/internal/provider/nowplayer"
	"github.com/Digital-Shane/guide-tidy/internal/provider/singtel"
)

// Load registers the built-in descriptors in r.
func Load(r *provider.Registry) error {
	builtins := []struct {
		d        *provider.Descriptor
		priority int
	}{
		{astro.New(), 100},
		{nowplayer.New(), 90},
		{singtel.New(), 80},
	}
	for _, b := range builtins {
		if _, exists := r.Get(b.d.Name); exists {
			continue
		}
		if err := r.Register(b.d, b.priority); err != nil {
			return fmt.Errorf("failed to register %s provider: %w", b.d.Name, err)
		}
	}
	return nil
}
