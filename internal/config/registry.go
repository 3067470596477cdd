package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	embeddings  map[string]func(ProviderEntry) (embeddings.Provider, error)
	classifiers map[string]func(ProviderEntry) (classifier.Classifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings:  make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		classifiers: make(map[string]func(ProviderEntry) (classifier.Classifier, error)),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterClassifier registers a classifier backend factory under name.
func (r *Registry) RegisterClassifier(name string, factory func(ProviderEntry) (classifier.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifiers[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	return create(r, r.embeddings, "embeddings", entry)
}

// CreateClassifier instantiates a classifier backend using the factory
// registered under entry.Name.
func (r *Registry) CreateClassifier(entry ProviderEntry) (classifier.Classifier, error) {
	return create(r, r.classifiers, "classifier", entry)
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
