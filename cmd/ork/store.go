package main

import (
	"fmt"

	"ork/internal/paths"
	"ork/pkg/pipeline"
)

// openStore resolves paths and opens the pipeline store. Callers own the
// returned store and must Close it.
func openStore() (*paths.Paths, *pipeline.Store, error) {
	p, err := paths.Resolve()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := p.EnsureHome(); err != nil {
		return nil, nil, err
	}
	store, err := pipeline.Open(p.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open pipeline store: %w", err)
	}
	return p, store, nil
}
