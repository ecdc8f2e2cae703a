// Package refcheck verifies that identifier fields pointing at other entity
// types resolve to existing records. All lookups for one payload are issued
// concurrently and joined, so the caller waits for the slowest lookup
// instead of the sum of them.
package refcheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/telemetry"
)

// Lookup is the single store capability the checker needs.
type Lookup interface {
	FindByID(ctx context.Context, id string) (docstore.Doc, error)
}

// StoreResolver maps an entity type to a store lookup handle.
type StoreResolver interface {
	StoreFor(ctx context.Context, et *model.EntityType) (Lookup, error)
}

// Error carries dangling-reference violations keyed by field name, with
// array elements reported per index as "field[i]".
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "reference check failed: " + strings.Join(parts, "; ")
}

// Checker resolves reference targets through the model registry and looks
// up referenced ids in the target type's store.
type Checker struct {
	registry *model.Registry
	stores   StoreResolver
}

// New builds a checker.
func New(registry *model.Registry, stores StoreResolver) *Checker {
	return &Checker{registry: registry, stores: stores}
}

// lookupJob is one pending reference lookup.
type lookupJob struct {
	field  string // error key, already index-qualified for array elements
	target string // target entity name
	id     string
}

// Check validates every reference field present and non-empty in payload.
// Unregistered target types are skipped: they cannot be validated, and the
// registry declaration is the authority on what is checkable.
func (c *Checker) Check(ctx context.Context, et *model.EntityType, payload map[string]any) error {
	errs := make(map[string]string)
	var jobs []lookupJob

	for _, fd := range model.DescribeFields(et) {
		if fd.Ref == "" {
			continue
		}
		raw, present := payload[fd.Name]
		if !present || raw == nil {
			continue
		}

		target, err := c.registry.Resolve(fd.Ref)
		if errors.Is(err, model.ErrModelNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve reference target %q: %w", fd.Ref, err)
		}

		if fd.Kind == model.KindArray {
			elements, ok := raw.([]any)
			if !ok {
				// Shape errors belong to the validator; nothing to look up.
				continue
			}
			for i, el := range elements {
				key := fmt.Sprintf("%s[%d]", fd.Name, i)
				id, ok := el.(string)
				if !ok || id == "" {
					errs[key] = "is not a valid reference"
					continue
				}
				if _, err := uuid.Parse(id); err != nil {
					errs[key] = "is not a valid reference"
					continue
				}
				jobs = append(jobs, lookupJob{field: key, target: target.Name, id: id})
			}
			continue
		}

		id, ok := raw.(string)
		if !ok || id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			errs[fd.Name] = "is not a valid reference"
			continue
		}
		jobs = append(jobs, lookupJob{field: fd.Name, target: target.Name, id: id})
	}

	if err := c.runLookups(ctx, jobs, errs); err != nil {
		return err
	}

	if len(errs) > 0 {
		telemetry.ReferenceCheckFailuresTotal.WithLabelValues(et.Name).Inc()
		return &Error{Fields: errs}
	}
	return nil
}

// runLookups fans the jobs out concurrently and records missing targets
// into errs. Store failures other than "not found" abort the whole check.
func (c *Checker) runLookups(ctx context.Context, jobs []lookupJob, errs map[string]string) error {
	if len(jobs) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			target, err := c.registry.Resolve(job.target)
			if err != nil {
				return err
			}
			store, err := c.stores.StoreFor(gctx, target)
			if err != nil {
				return err
			}
			_, err = store.FindByID(gctx, job.id)
			if errors.Is(err, docstore.ErrNotFound) {
				mu.Lock()
				errs[job.field] = fmt.Sprintf("references a missing %s record", job.target)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("look up %s %s: %w", job.target, job.id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
