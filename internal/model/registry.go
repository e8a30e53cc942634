package model

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownModel = errors.New("model: unknown model")

// Registry maps model names to constructors.
type Registry struct {
	models map[string]func() System
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() System)}

	r.models["decay"] = func() System { return NewDecay() }
	r.models["pendulum"] = func() System { return NewPendulum() }
	r.models["freebody"] = func() System { return NewFreeBody() }

	return r
}

func (r *Registry) Register(name string, fn func() System) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
