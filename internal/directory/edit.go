package directory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EditDraft is the unsaved edit of a single record. At most one draft exists per repository.
type EditDraft struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`

	original UserRecord
}

// Changes returns the fields that differ from the record as it was when editing began.
func (d EditDraft) Changes() Partial {
	var p Partial
	if d.Name != d.original.Name {
		name := d.Name
		p.Name = &name
	}
	if d.Department != d.original.Department {
		dept := d.Department
		p.Department = &dept
	}
	return p
}

// BeginEdit puts the record into edit mode. Any other record's unsaved draft is discarded.
func (r *Repository) BeginEdit(id string) (EditDraft, error) {
	rec, ok := r.cached(id)
	if !ok {
		return EditDraft{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}

	r.editMu.Lock()
	defer r.editMu.Unlock()
	if r.edit != nil && r.edit.ID != id {
		r.logger.Info("discarding unsaved edit", zap.String("id", r.edit.ID), zap.String("next", id))
	}
	r.edit = &EditDraft{ID: rec.ID, Name: rec.Name, Department: rec.Department, original: rec}
	return *r.edit, nil
}

// Editing returns the current draft, if any.
func (r *Repository) Editing() (EditDraft, bool) {
	r.editMu.Lock()
	defer r.editMu.Unlock()
	if r.edit == nil {
		return EditDraft{}, false
	}
	return *r.edit, true
}

// SetDraft changes the draft of the record currently in edit.
func (r *Repository) SetDraft(id string, p Partial) (EditDraft, error) {
	r.editMu.Lock()
	defer r.editMu.Unlock()
	if r.edit == nil || r.edit.ID != id {
		return EditDraft{}, invalid("record %s is not being edited", id)
	}
	if p.Name != nil {
		r.edit.Name = *p.Name
	}
	if p.Department != nil {
		r.edit.Department = *p.Department
	}
	return *r.edit, nil
}

// CancelEdit discards the current draft.
func (r *Repository) CancelEdit() {
	r.editMu.Lock()
	r.edit = nil
	r.editMu.Unlock()
}

// SaveEdit persists the current draft and leaves edit mode. On failure the draft is kept.
func (r *Repository) SaveEdit(ctx context.Context) (UserRecord, error) {
	draft, ok := r.Editing()
	if !ok {
		return UserRecord{}, invalid("no record is being edited")
	}

	if changes := draft.Changes(); !changes.IsEmpty() {
		if err := r.Update(ctx, draft.ID, changes); err != nil {
			return UserRecord{}, err
		}
	}

	r.editMu.Lock()
	// A concurrent BeginEdit may have replaced the draft while the update ran.
	if r.edit != nil && r.edit.ID == draft.ID {
		r.edit = nil
	}
	r.editMu.Unlock()

	return r.Get(ctx, draft.ID)
}

func (r *Repository) dropEdit(id string) {
	r.editMu.Lock()
	if r.edit != nil && r.edit.ID == id {
		r.edit = nil
	}
	r.editMu.Unlock()
}
