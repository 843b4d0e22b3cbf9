// Package processor defines the pluggable document processors that workers
// run against claimed jobs.
package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docflow/docflow/internal/domain/model"
)

// Progress is one progress observation emitted by a running processor.
type Progress struct {
	Processed   int
	Total       int
	CurrentFile string
	Message     string
}

// Reporter receives progress from a processor. Implementations persist it
// and fan it out to subscribers; processors just call Report and move on.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

// Processor runs a job's work inside its job directory. It returns the
// outputs to persist on success; cancellation of ctx must abort the run.
type Processor interface {
	Name() string
	Run(ctx context.Context, job *model.JobRecord, jobDir string, reporter Reporter) (*model.JobCompletion, error)
}

// ParameterKey is the job parameter naming the processor to run.
const ParameterKey = "processor"

// Registry maps processor names to implementations.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
	fallback   string
}

// NewRegistry creates a registry whose fallback processor is used for jobs
// that do not name one.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		processors: map[string]Processor{},
		fallback:   fallback,
	}
}

// Register adds a processor. Re-registering a name replaces it.
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.Name()] = p
}

// Resolve returns the processor a job asks for, or the fallback when the job
// parameters are silent.
func (r *Registry) Resolve(params model.Parameters) (Processor, error) {
	name := r.fallback
	if v, ok := params[ParameterKey]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("invalid processor parameter %v", v)
		}
		name = s
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q", name)
	}
	return p, nil
}

// Names returns the registered processor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
