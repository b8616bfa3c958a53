// Package memory provides an in-memory persistence implementation for tests,
// development and single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by process memory.
type Persistence struct {
	definitions *definitionRepository
	instances   *instanceRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		definitions: &definitionRepository{
			definitions: make(map[string]*models.WorkflowDefinition),
		},
		instances: &instanceRepository{
			instances: make(map[string]*models.WorkflowInstance),
			active:    make(map[string]struct{}),
			locks:     make(map[string]*sync.Mutex),
		},
	}
}

func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitions
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instances
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// definitionRepository holds definitions behind a read-write mutex. Both
// reads and writes go through Clone, so the stored value is only ever
// replaced wholesale and a caller mutating a fetched definition never
// touches the published one.
type definitionRepository struct {
	mu          sync.RWMutex
	definitions map[string]*models.WorkflowDefinition
}

func (r *definitionRepository) Definitions(_ context.Context, filter persistence.DefinitionFilter) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]*models.WorkflowDefinition, 0, len(r.definitions))

	for _, definition := range r.definitions {
		if filter.ActiveOnly && !definition.IsActive {
			continue
		}

		if filter.Category != "" && definition.Category != filter.Category {
			continue
		}

		definitions = append(definitions, definition.Clone())
	}

	return definitions, nil
}

func (r *definitionRepository) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definition, ok := r.definitions[id]
	if !ok {
		return nil, persistence.NewDefinitionError("DefinitionByID", id, persistence.ErrDefinitionNotFound)
	}

	return definition.Clone(), nil
}

func (r *definitionRepository) SaveDefinition(_ context.Context, definition *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions[definition.ID] = definition.Clone()

	return nil
}

func (r *definitionRepository) DeleteDefinition(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[id]; !ok {
		return persistence.NewDefinitionError("DeleteDefinition", id, persistence.ErrDefinitionNotFound)
	}

	delete(r.definitions, id)

	return nil
}

// instanceRepository serializes mutations per instance id: UpdateInstance
// acquires the instance's own mutex, so cancellation racing an in-flight step
// execution is just the next mutation in line. The outer mutex only guards
// the maps themselves.
type instanceRepository struct {
	mu        sync.RWMutex
	instances map[string]*models.WorkflowInstance
	active    map[string]struct{}
	locks     map[string]*sync.Mutex
}

func (r *instanceRepository) InstanceByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]
	if !ok {
		return nil, persistence.NewInstanceError("InstanceByID", id, persistence.ErrInstanceNotFound)
	}

	return instance.Clone(), nil
}

func (r *instanceRepository) CreateInstance(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[instance.ID]; ok {
		return persistence.NewInstanceError("CreateInstance", instance.ID, persistence.ErrInstanceAlreadyExists)
	}

	r.instances[instance.ID] = instance.Clone()
	r.locks[instance.ID] = &sync.Mutex{}

	if !instance.Status.Terminal() {
		r.active[instance.ID] = struct{}{}
	}

	return nil
}

func (r *instanceRepository) UpdateInstance(_ context.Context, id string, mutate func(*models.WorkflowInstance) error) (*models.WorkflowInstance, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()

	if !ok {
		return nil, persistence.NewInstanceError("UpdateInstance", id, persistence.ErrInstanceNotFound)
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.instances[id]
	r.mu.RUnlock()

	updated := current.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.instances[id] = updated

	if updated.Status.Terminal() {
		delete(r.active, id)
	} else {
		r.active[id] = struct{}{}
	}
	r.mu.Unlock()

	return updated.Clone(), nil
}

func (r *instanceRepository) ActiveInstances(_ context.Context) ([]*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*models.WorkflowInstance, 0, len(r.active))
	for id := range r.active {
		instances = append(instances, r.instances[id].Clone())
	}

	return instances, nil
}

func (r *instanceRepository) InstancesByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var instances []*models.WorkflowInstance

	for _, instance := range r.instances {
		if instance.WorkflowID == workflowID {
			instances = append(instances, instance.Clone())
		}
	}

	return instances, nil
}
