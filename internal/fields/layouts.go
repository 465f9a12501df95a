package fields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/store"
)

// Layout config shape:
//
//	{tabs: [{name, sortOrder, fields: {<fieldUid>: {required, sortOrder}}}]}
//
// Field UIDs must resolve to live fields; the fields reconciler is processed
// before any owner applies a layout.

// CreateLayout builds a layout from config and inserts it in tx.
func (s *Service) CreateLayout(ctx context.Context, tx store.Store, uid string, config map[string]any) (*model.FieldLayout, error) {
	layout := &model.FieldLayout{UID: uid, Type: model.FieldLayoutTypeEntry}
	if err := s.SaveLayout(ctx, tx, layout, config); err != nil {
		return nil, err
	}
	return layout, nil
}

// SaveLayout replaces the placements of layout with those in config and
// writes it in tx. A layout without an ID is inserted.
func (s *Service) SaveLayout(ctx context.Context, tx store.Store, layout *model.FieldLayout, config map[string]any) error {
	placed, err := resolvePlacements(ctx, tx, layout.UID, config)
	if err != nil {
		return err
	}
	layout.Fields = placed
	if layout.Type == "" {
		layout.Type = model.FieldLayoutTypeEntry
	}
	if layout.ID == 0 {
		if err := tx.CreateFieldLayout(ctx, layout); err != nil {
			return fmt.Errorf("creating field layout: %w", err)
		}
		return nil
	}
	if err := tx.UpdateFieldLayout(ctx, layout); err != nil {
		return fmt.Errorf("updating field layout %d: %w", layout.ID, err)
	}
	return nil
}

// DeleteLayout removes a layout. A missing layout is not an error.
func (s *Service) DeleteLayout(ctx context.Context, tx store.Store, id int64) error {
	if id == 0 {
		return nil
	}
	if err := tx.DeleteFieldLayout(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deleting field layout %d: %w", id, err)
	}
	return nil
}

// LayoutConfig returns the config of the live layout, or nil when id is 0.
func (s *Service) LayoutConfig(ctx context.Context, id int64) (*model.FieldLayout, map[string]any, error) {
	if id == 0 {
		return nil, nil, nil
	}
	layout, err := s.store.GetFieldLayout(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading field layout %d: %w", id, err)
	}
	return layout, ConfigFromLayout(layout), nil
}

// ConfigFromLayout renders a layout as project config.
func ConfigFromLayout(layout *model.FieldLayout) map[string]any {
	type tab struct {
		name   string
		order  int
		fields map[string]any
	}
	byName := make(map[string]*tab)
	var tabs []*tab
	for _, lf := range layout.Fields {
		t := byName[lf.Tab]
		if t == nil {
			t = &tab{name: lf.Tab, order: lf.TabOrder, fields: make(map[string]any)}
			byName[lf.Tab] = t
			tabs = append(tabs, t)
		}
		t.fields[lf.FieldUID] = map[string]any{
			"required":  lf.Required,
			"sortOrder": lf.SortOrder,
		}
	}
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].order < tabs[j].order })

	out := make([]any, len(tabs))
	for i, t := range tabs {
		out[i] = map[string]any{
			"name":      t.name,
			"sortOrder": t.order,
			"fields":    t.fields,
		}
	}
	return map[string]any{"tabs": out}
}

func resolvePlacements(ctx context.Context, tx store.Store, layoutUID string, config map[string]any) ([]*model.LayoutField, error) {
	tabs, _ := config["tabs"].([]any)
	var placed []*model.LayoutField
	for i, raw := range tabs {
		tab := projectconfig.AsMap(raw)
		if tab == nil {
			return nil, model.Invariantf("field layout %s: tab %d is not an object", layoutUID, i)
		}
		tabOrder := projectconfig.Int(tab, "sortOrder")
		if tabOrder == 0 {
			tabOrder = i + 1
		}
		fields := projectconfig.Map(tab, "fields")
		uids := make([]string, 0, len(fields))
		for uid := range fields {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(a, b int) bool {
			oa := projectconfig.Int(projectconfig.Map(fields, uids[a]), "sortOrder")
			ob := projectconfig.Int(projectconfig.Map(fields, uids[b]), "sortOrder")
			if oa != ob {
				return oa < ob
			}
			return uids[a] < uids[b]
		})
		for _, uid := range uids {
			f, err := tx.GetFieldByUID(ctx, uid)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, model.Invariantf("field layout %s references unknown field %s", layoutUID, uid)
			}
			if err != nil {
				return nil, fmt.Errorf("resolving field %s: %w", uid, err)
			}
			placement := projectconfig.Map(fields, uid)
			placed = append(placed, &model.LayoutField{
				FieldID:   f.ID,
				FieldUID:  uid,
				Tab:       projectconfig.String(tab, "name"),
				TabOrder:  tabOrder,
				Required:  projectconfig.Bool(placement, "required"),
				SortOrder: projectconfig.Int(placement, "sortOrder"),
			})
		}
	}
	return placed, nil
}
