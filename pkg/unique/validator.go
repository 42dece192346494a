// Package unique enforces natural-key uniqueness and allocates identifiers for new entities.
package unique

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/record"
)

var (
	ErrDuplicateEntity = errors.New("unique: duplicate entity")
	ErrReadOnlyField   = errors.New("unique: read-only field")
	ErrMissingKey      = errors.New("unique: missing natural key")
	ErrNoPolicy        = errors.New("unique: policy has no keys")
)

// DuplicateEntityError indicates that a candidate collides with another entity on a natural key.
type DuplicateEntityError struct {
	Entity string
	Field  string // factor field the collision occurred on
	Value  string // normalized key

	// Existing is the identifier of the stored entity holding the key.
	// It is empty when the collision is with an earlier candidate of the same batch.
	Existing string

	Index int // index of the offending candidate
	Other int // index of the earlier candidate within the batch, or -1
}

func (de *DuplicateEntityError) Error() string {
	if de.Existing == "" {
		return fmt.Sprintf("unique: duplicate %s: %s=%q of candidate %d already used by candidate %d", de.Entity, de.Field, de.Value, de.Index, de.Other)
	}
	return fmt.Sprintf("unique: duplicate %s: %s=%q of candidate %d already used by %s", de.Entity, de.Field, de.Value, de.Index, de.Existing)
}

func (de *DuplicateEntityError) Is(target error) bool {
	return target == ErrDuplicateEntity
}

// LookupFunc returns the identifier of the stored entity whose factor field holds value.
type LookupFunc func(ctx context.Context, entity, factor, value string) (id string, found bool, err error)

// LastFunc returns the greatest identifier stored for an entity type.
type LastFunc func(ctx context.Context, entity string) (id string, found bool, err error)

// Validator validates candidates against natural keys, and assigns identifiers to new entities.
//
// Validation, allocation and the commit of the validated entities all happen while holding a lock for the entity type.
// Concurrent creations of the same entity type through one Validator can thus never allocate the same identifier
// or admit the same natural key twice.
type Validator struct {
	Lookup LookupFunc
	Last   LastFunc

	l     sync.Mutex
	locks map[string]*sync.Mutex
}

// lock locks the given entity type and returns a function to unlock it.
func (v *Validator) lock(entity string) func() {
	v.l.Lock()
	if v.locks == nil {
		v.locks = make(map[string]*sync.Mutex)
	}
	m, ok := v.locks[entity]
	if !ok {
		m = new(sync.Mutex)
		v.locks[entity] = m
	}
	v.l.Unlock()

	m.Lock()
	return m.Unlock
}

// CommitFunc persists validated entities.
type CommitFunc func(ctx context.Context, entities []map[string]any) error

// Create validates a batch of candidates and assigns each a fresh identifier.
//
// Every candidate is copied, and the copy receives the uniqueness key of each natural key and its identifier.
// Identifiers are contiguous, in candidate order, starting after the greatest stored identifier.
// If any candidate is rejected, nothing is committed and no identifier is consumed.
func (v *Validator) Create(ctx context.Context, policy Policy, candidates []map[string]any, commit CommitFunc) ([]map[string]any, error) {
	if len(policy.Keys) == 0 {
		return nil, ErrNoPolicy
	}
	for i, candidate := range candidates {
		if _, ok := candidate[record.IdentifierField]; ok {
			return nil, fmt.Errorf("%w: candidate %d sets %q", ErrReadOnlyField, i, record.IdentifierField)
		}
	}

	unlock := v.lock(policy.Entity)
	defer unlock()

	entities, err := v.validate(ctx, policy, candidates)
	if err != nil {
		return nil, err
	}

	next, err := v.next(ctx, policy.Entity)
	if err != nil {
		return nil, err
	}
	ids, err := policy.Prefix.Batch(next, len(entities))
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		entities[i][record.IdentifierField] = id
	}

	if commit != nil {
		if err := commit(ctx, entities); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// Import validates a batch of entities that already carry their identifiers.
//
// Each entity must hold an identifier with the prefix of the policy, no two entities may share one.
// Uniqueness keys are recomputed from the natural keys, replacing any supplied with the entities.
// Collisions within the batch and with stored entities are rejected as in [Validator.Create].
func (v *Validator) Import(ctx context.Context, policy Policy, candidates []map[string]any, commit CommitFunc) ([]map[string]any, error) {
	if len(policy.Keys) == 0 {
		return nil, ErrNoPolicy
	}

	ids := make(map[string]int, len(candidates))
	for i, candidate := range candidates {
		id, _ := candidate[record.IdentifierField].(string)
		if !policy.Prefix.Owns(id) {
			return nil, fmt.Errorf("%w: candidate %d: %q is not a %s identifier", ident.ErrMalformedIdentifier, i, id, policy.Entity)
		}
		if other, ok := ids[id]; ok {
			return nil, &DuplicateEntityError{Entity: policy.Entity, Field: record.IdentifierField, Value: id, Index: i, Other: other}
		}
		ids[id] = i
	}

	unlock := v.lock(policy.Entity)
	defer unlock()

	entities, err := v.validate(ctx, policy, candidates)
	if err != nil {
		return nil, err
	}

	if commit != nil {
		if err := commit(ctx, entities); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// validate copies candidates and sets the uniqueness key of each natural key.
// The caller must hold the lock for the entity type.
func (v *Validator) validate(ctx context.Context, policy Policy, candidates []map[string]any) ([]map[string]any, error) {
	entities := make([]map[string]any, len(candidates))
	seen := make(map[string]map[string]int, len(policy.Keys))

	for i, candidate := range candidates {
		entity := make(map[string]any, len(candidate)+len(policy.Keys)+1)
		for field, value := range candidate {
			entity[field] = value
		}

		for k, key := range policy.Keys {
			delete(entity, key.Factor())

			raw, ok := key.raw(entity)
			if !ok {
				if k == 0 || !key.Optional {
					return nil, fmt.Errorf("%w: candidate %d has no %q", ErrMissingKey, i, key.Field)
				}
				continue
			}
			if len(key.Hash) > 0 {
				entity[key.Field] = raw
			}

			value, err := key.normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("candidate %d: %q: %w", i, key.Field, err)
			}

			factor := key.Factor()
			if seen[factor] == nil {
				seen[factor] = make(map[string]int)
			}
			if other, ok := seen[factor][value]; ok {
				return nil, &DuplicateEntityError{Entity: policy.Entity, Field: factor, Value: value, Index: i, Other: other}
			}
			seen[factor][value] = i

			existing, found, err := v.lookup(ctx, policy.Entity, factor, value)
			if err != nil {
				return nil, err
			}
			if found {
				return nil, &DuplicateEntityError{Entity: policy.Entity, Field: factor, Value: value, Existing: existing, Index: i, Other: -1}
			}

			entity[factor] = value
		}

		entities[i] = entity
	}
	return entities, nil
}

// Update validates changes to the stored entity current.
//
// The identifier can never be changed.
// Natural keys that are changed are re-validated, ignoring a collision with current itself.
// Natural keys set to their current value are not validated at all.
// Hash keys are always recomputed from the merged fields.
// The returned changes include the updated uniqueness keys.
func (v *Validator) Update(ctx context.Context, policy Policy, current, changes map[string]any, commit CommitFunc) (map[string]any, error) {
	if _, ok := changes[record.IdentifierField]; ok {
		return nil, fmt.Errorf("%w: %q", ErrReadOnlyField, record.IdentifierField)
	}
	id, _ := current[record.IdentifierField].(string)

	unlock := v.lock(policy.Entity)
	defer unlock()

	merged := make(map[string]any, len(current)+len(changes))
	for field, value := range current {
		merged[field] = value
	}
	for field, value := range changes {
		merged[field] = value
	}

	update := make(map[string]any, len(changes)+len(policy.Keys))
	for field, value := range changes {
		update[field] = value
	}

	for _, key := range policy.Keys {
		if len(key.Hash) == 0 {
			value, ok := changes[key.Field]
			if !ok || (value != nil && hashkey.Stringify(value) == hashkey.Stringify(current[key.Field])) {
				continue
			}
		}

		raw, ok := key.raw(merged)
		if !ok {
			if !key.Optional {
				return nil, fmt.Errorf("%w: %q cannot be removed", ErrMissingKey, key.Field)
			}
			update[key.Factor()] = nil
			continue
		}
		if len(key.Hash) > 0 {
			update[key.Field] = raw
		}

		value, err := key.normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", key.Field, err)
		}

		factor := key.Factor()
		existing, found, err := v.lookup(ctx, policy.Entity, factor, value)
		if err != nil {
			return nil, err
		}
		if found && existing != id {
			return nil, &DuplicateEntityError{Entity: policy.Entity, Field: factor, Value: value, Existing: existing, Other: -1}
		}
		update[factor] = value
	}

	if commit != nil {
		if err := commit(ctx, []map[string]any{update}); err != nil {
			return nil, err
		}
	}
	return update, nil
}

func (v *Validator) lookup(ctx context.Context, entity, factor, value string) (string, bool, error) {
	if v.Lookup == nil {
		return "", false, nil
	}
	return v.Lookup(ctx, entity, factor, value)
}

// next returns the sequence number to assign to the next entity.
func (v *Validator) next(ctx context.Context, entity string) (int, error) {
	if v.Last == nil {
		return 1, nil
	}

	last, found, err := v.Last(ctx, entity)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}

	sequence, err := ident.Decode(last)
	if err != nil {
		return 0, fmt.Errorf("last %s identifier: %w", entity, err)
	}
	return sequence + 1, nil
}
