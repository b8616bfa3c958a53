// Package redis provides a redis-backed persistence implementation so engine
// state survives process restarts and can be shared with the escalation
// sweeper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	definitionKeyPrefix = "docuflow:definition:"
	definitionIndexKey  = "docuflow:definitions"
	instanceKeyPrefix   = "docuflow:instance:"
	activeIndexKey      = "docuflow:instances:active"
	workflowIndexPrefix = "docuflow:instances:workflow:"
)

// Persistence implements persistence.Persistence on top of redis. Instance
// mutations are serialized with in-process per-instance locks: a single
// engine process owns instance writes, while the sweeper and API read.
type Persistence struct {
	client      *goredis.Client
	definitions *definitionRepository
	instances   *instanceRepository
}

func NewPersistence(redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	return &Persistence{
		client:      client,
		definitions: &definitionRepository{client: client},
		instances:   &instanceRepository{client: client},
	}, nil
}

func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitions
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instances
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

type definitionRepository struct {
	client *goredis.Client
}

func (r *definitionRepository) Definitions(ctx context.Context, filter persistence.DefinitionFilter) ([]*models.WorkflowDefinition, error) {
	ids, err := r.client.SMembers(ctx, definitionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definition ids: %w", err)
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		definition, err := r.DefinitionByID(ctx, id)
		if err != nil {
			if persistence.IsDefinitionNotFound(err) {
				continue
			}

			return nil, err
		}

		if filter.ActiveOnly && !definition.IsActive {
			continue
		}

		if filter.Category != "" && definition.Category != filter.Category {
			continue
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

func (r *definitionRepository) DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	payload, err := r.client.Get(ctx, definitionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewDefinitionError("DefinitionByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewDefinitionError("DefinitionByID", id, err)
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(payload, &definition); err != nil {
		return nil, persistence.NewDefinitionError("DefinitionByID", id, err)
	}

	return &definition, nil
}

func (r *definitionRepository) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	payload, err := json.Marshal(definition)
	if err != nil {
		return persistence.NewDefinitionError("SaveDefinition", definition.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, definitionKeyPrefix+definition.ID, payload, 0)
	pipe.SAdd(ctx, definitionIndexKey, definition.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewDefinitionError("SaveDefinition", definition.ID, err)
	}

	return nil
}

func (r *definitionRepository) DeleteDefinition(ctx context.Context, id string) error {
	removed, err := r.client.SRem(ctx, definitionIndexKey, id).Result()
	if err != nil {
		return persistence.NewDefinitionError("DeleteDefinition", id, err)
	}

	if removed == 0 {
		return persistence.NewDefinitionError("DeleteDefinition", id, persistence.ErrDefinitionNotFound)
	}

	if err := r.client.Del(ctx, definitionKeyPrefix+id).Err(); err != nil {
		return persistence.NewDefinitionError("DeleteDefinition", id, err)
	}

	return nil
}

type instanceRepository struct {
	client *goredis.Client
	locks  sync.Map // instance id -> *sync.Mutex
}

func (r *instanceRepository) lockFor(id string) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(id, &sync.Mutex{})

	return lock.(*sync.Mutex)
}

func (r *instanceRepository) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	payload, err := r.client.Get(ctx, instanceKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewInstanceError("InstanceByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	var instance models.WorkflowInstance
	if err := json.Unmarshal(payload, &instance); err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	restoreContextMaps(&instance)

	return &instance, nil
}

// restoreContextMaps re-initializes maps dropped by the JSON round trip.
// Empty maps marshal away under omitempty and come back nil; mutation
// closures write into them without checking.
func restoreContextMaps(instance *models.WorkflowInstance) {
	if instance.Context.Variables == nil {
		instance.Context.Variables = make(map[string]any)
	}

	if instance.Context.Assignments == nil {
		instance.Context.Assignments = make(map[string]string)
	}

	if instance.Context.Deadlines == nil {
		instance.Context.Deadlines = make(map[string]time.Time)
	}

	if instance.Metrics.StepDurations == nil {
		instance.Metrics.StepDurations = make(map[string]time.Duration)
	}
}

func (r *instanceRepository) CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	payload, err := json.Marshal(instance)
	if err != nil {
		return persistence.NewInstanceError("CreateInstance", instance.ID, err)
	}

	created, err := r.client.SetNX(ctx, instanceKeyPrefix+instance.ID, payload, 0).Result()
	if err != nil {
		return persistence.NewInstanceError("CreateInstance", instance.ID, err)
	}

	if !created {
		return persistence.NewInstanceError("CreateInstance", instance.ID, persistence.ErrInstanceAlreadyExists)
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, workflowIndexPrefix+instance.WorkflowID, instance.ID)

	if !instance.Status.Terminal() {
		pipe.SAdd(ctx, activeIndexKey, instance.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewInstanceError("CreateInstance", instance.ID, err)
	}

	return nil
}

func (r *instanceRepository) UpdateInstance(ctx context.Context, id string, mutate func(*models.WorkflowInstance) error) (*models.WorkflowInstance, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	instance, err := r.InstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(instance); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(instance)
	if err != nil {
		return nil, persistence.NewInstanceError("UpdateInstance", id, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, instanceKeyPrefix+id, payload, 0)

	if instance.Status.Terminal() {
		pipe.SRem(ctx, activeIndexKey, id)
	} else {
		pipe.SAdd(ctx, activeIndexKey, id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, persistence.NewInstanceError("UpdateInstance", id, err)
	}

	return instance, nil
}

func (r *instanceRepository) ActiveInstances(ctx context.Context) ([]*models.WorkflowInstance, error) {
	return r.instancesFromIndex(ctx, activeIndexKey)
}

func (r *instanceRepository) InstancesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error) {
	return r.instancesFromIndex(ctx, workflowIndexPrefix+workflowID)
}

func (r *instanceRepository) instancesFromIndex(ctx context.Context, indexKey string) ([]*models.WorkflowInstance, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", strings.TrimPrefix(indexKey, "docuflow:"), err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := r.InstanceByID(ctx, id)
		if err != nil {
			if persistence.IsInstanceNotFound(err) {
				continue
			}

			return nil, err
		}

		instances = append(instances, instance)
	}

	return instances, nil
}
