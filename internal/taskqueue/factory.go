package taskqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// DefaultPriority is the priority of tasks created without WithPriority.
const DefaultPriority = 5

// idTimeFormat renders creation time at second resolution.
const idTimeFormat = "20060102T150405"

// Factory creates new pending tasks.
type Factory struct {
	store *Store
	pid   int

	// mu serializes ID reservation so that two goroutines creating tasks of
	// the same type in the same second get distinct suffixes.
	mu sync.Mutex
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithPID overrides the process ID embedded in generated task IDs.
func WithPID(pid int) FactoryOption {
	return func(f *Factory) { f.pid = pid }
}

// NewFactory returns a Factory writing into store.
func NewFactory(store *Store, opts ...FactoryOption) *Factory {
	f := &Factory{store: store, pid: os.Getpid()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type createOptions struct {
	dependencies  []string
	priority      int
	schemaVersion int
}

// CreateOption configures a single Create call.
type CreateOption func(*createOptions)

// WithDependencies declares the tasks this task consumes. Order is kept and
// duplicates are dropped.
func WithDependencies(ids ...string) CreateOption {
	return func(o *createOptions) { o.dependencies = append(o.dependencies, ids...) }
}

// WithPriority sets the advisory priority; lower is more urgent.
func WithPriority(n int) CreateOption {
	return func(o *createOptions) { o.priority = n }
}

// WithSchemaVersion declares the payload schema version.
func WithSchemaVersion(v int) CreateOption {
	return func(o *createOptions) { o.schemaVersion = v }
}

// Create writes a new pending task and returns its ID. The ID has the form
// {type}-{YYYYMMDDThhmmss}-{pid}; if that ID is already taken anywhere in the
// store, -2, -3, ... is appended.
func (f *Factory) Create(typ Type, description string, payload json.RawMessage, opts ...CreateOption) (string, error) {
	rec, err := f.CreateRecord(typ, description, payload, opts...)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// CreateRecord is Create but returns the written record.
func (f *Factory) CreateRecord(typ Type, description string, payload json.RawMessage, opts ...CreateOption) (*Record, error) {
	if err := typ.Validate(); err != nil {
		return nil, err
	}
	o := createOptions{priority: DefaultPriority, schemaVersion: CurrentSchemaVersion}
	for _, opt := range opts {
		opt(&o)
	}
	deps := dedupe(o.dependencies)
	for _, dep := range deps {
		if err := ValidateID(dep); err != nil {
			return nil, errors.Wrapf(err, "dependency %q", dep)
		}
	}
	body, err := normalizePayload(payload)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.store.Now().Truncate(time.Second)
	id, err := f.reserveID(typ, now)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		Type:          typ,
		Description:   description,
		Payload:       body,
		SchemaVersion: o.schemaVersion,
		Dependencies:  deps,
		Priority:      o.priority,
		Status:        StatusPending,
		CreatedAt:     now,
	}
	if err := f.store.Put(rec, PartitionPending); err != nil {
		return nil, err
	}

	f.store.logger.WithTask(id).Info("task created",
		"type", string(typ),
		"priority", o.priority,
		"dependencies", deps)
	f.store.emitCreated(rec)
	return rec.Clone(), nil
}

// reserveID picks the first free ID for typ at now. The caller must hold f.mu.
func (f *Factory) reserveID(typ Type, now time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s-%d", typ, now.UTC().Format(idTimeFormat), f.pid)
	candidate := base
	for n := 2; ; n++ {
		taken, err := f.taken(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (f *Factory) taken(id string) (bool, error) {
	found, err := f.store.Locate(id)
	if err != nil {
		return false, err
	}
	if len(found) > 0 {
		return true, nil
	}
	return f.store.HasResult(id)
}
