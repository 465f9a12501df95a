// Package structures manages the hierarchies that order the entries of
// structure sections. Every function runs against the caller's transaction.
package structures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

// Mode controls what AppendToRoot does with an element that is already in
// the structure.
type Mode string

const (
	// ModeInsert leaves an existing element where it is.
	ModeInsert Mode = "insert"
	// ModeUpdate moves an existing element to the end of the root level.
	ModeUpdate Mode = "update"
	// ModeAuto moves an existing element to the root only if it is nested.
	ModeAuto Mode = "auto"
)

// Create inserts a structure.
func Create(ctx context.Context, tx store.Store, uid string, maxLevels int) (*model.Structure, error) {
	st := &model.Structure{UID: uid, MaxLevels: maxLevels}
	if err := tx.CreateStructure(ctx, st); err != nil {
		return nil, fmt.Errorf("creating structure %s: %w", uid, err)
	}
	return st, nil
}

// Save writes st, inserting it when it has no ID.
func Save(ctx context.Context, tx store.Store, st *model.Structure) error {
	if st.ID == 0 {
		if err := tx.CreateStructure(ctx, st); err != nil {
			return fmt.Errorf("creating structure %s: %w", st.UID, err)
		}
		return nil
	}
	if err := tx.UpdateStructure(ctx, st); err != nil {
		return fmt.Errorf("updating structure %d: %w", st.ID, err)
	}
	return nil
}

// Resolve returns the structure with uid, creating it when missing, and
// brings its level limit up to date. created reports whether a row was
// inserted.
func Resolve(ctx context.Context, tx store.Store, uid string, maxLevels int) (st *model.Structure, created bool, err error) {
	st, err = tx.GetStructureByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		st, err = Create(ctx, tx, uid, maxLevels)
		return st, err == nil, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading structure %s: %w", uid, err)
	}
	if st.MaxLevels != maxLevels {
		st.MaxLevels = maxLevels
		if err := Save(ctx, tx, st); err != nil {
			return nil, false, err
		}
	}
	return st, false, nil
}

// Delete removes a structure and its elements. A missing structure is not an
// error.
func Delete(ctx context.Context, tx store.Store, id int64) error {
	if id == 0 {
		return nil
	}
	if err := tx.DeleteStructure(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deleting structure %d: %w", id, err)
	}
	return nil
}

// AppendToRoot places elementID at the end of the structure's root level.
// What happens to an element already in the structure depends on mode.
func AppendToRoot(ctx context.Context, tx store.Store, structureID, elementID int64, mode Mode) (*model.StructureElement, error) {
	existing, err := tx.GetStructureElement(ctx, structureID, elementID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading structure element: %w", err)
	}
	if existing != nil {
		switch mode {
		case ModeInsert:
			return existing, nil
		case ModeAuto:
			if existing.Level == 1 {
				return existing, nil
			}
		}
	}

	last, err := tx.MaxStructureSortOrder(ctx, structureID)
	if err != nil {
		return nil, fmt.Errorf("reading structure %d sort order: %w", structureID, err)
	}

	if existing != nil {
		existing.ParentID = 0
		existing.Level = 1
		existing.SortOrder = last + 1
		if err := tx.UpdateStructureElement(ctx, existing); err != nil {
			return nil, fmt.Errorf("moving element %d: %w", elementID, err)
		}
		return existing, nil
	}

	el := &model.StructureElement{
		StructureID: structureID,
		ElementID:   elementID,
		Level:       1,
		SortOrder:   last + 1,
	}
	if err := tx.CreateStructureElement(ctx, el); err != nil {
		return nil, fmt.Errorf("appending element %d: %w", elementID, err)
	}
	return el, nil
}
