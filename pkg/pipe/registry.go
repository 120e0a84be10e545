package pipe

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry memoizes Generate by helper identity: concurrent requests to
// elaborate the same pipe shape collapse into a single codegen call, and a
// helper name colliding with a previously generated — but structurally
// different — descriptor is a hard error (spec §4.5: "collisions with
// existing module functions are hard errors").
type Registry struct {
	group singleflight.Group

	mu      sync.Mutex
	byName  map[string]generated
}

type generated struct {
	source string
	sum    string // canonicalized descriptor JSON, for collision detection
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]generated)}
}

// Elaborate returns the generated helper's source and name for d, reusing
// a prior identical elaboration if one exists.
func (r *Registry) Elaborate(module string, d *Descriptor) (source string, helperName string, err error) {
	helperName, err = HelperIdentity(module, d)
	if err != nil {
		return "", "", err
	}
	canon, err := canonicalize(d)
	if err != nil {
		return "", "", err
	}

	v, err, _ := r.group.Do(helperName, func() (any, error) {
		r.mu.Lock()
		if existing, ok := r.byName[helperName]; ok {
			r.mu.Unlock()
			if existing.sum != string(canon) {
				return nil, fmt.Errorf("pipe: helper name %s collides with a differently-shaped pipe", helperName)
			}
			return existing.source, nil
		}
		r.mu.Unlock()

		src, _, err := Generate(module, d)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.byName[helperName] = generated{source: src, sum: string(canon)}
		r.mu.Unlock()
		return src, nil
	})
	if err != nil {
		return "", "", err
	}
	return v.(string), helperName, nil
}
