// Package fields reconciles fields.* project config and owns field layouts.
package fields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/idgen"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/store"
)

// ConfigKey is the root config path of fields.
const ConfigKey = "fields"

// ErrFieldNotFound is returned when a field ID or UID has no live row.
var ErrFieldNotFound = errors.New("field not found")

// ConfigStore is the part of the project config manager the service writes
// through.
type ConfigStore interface {
	Set(ctx context.Context, path string, value any) error
	Remove(ctx context.Context, path string) error
}

// Service saves fields through project config, applies field config to the
// store and builds field layouts.
type Service struct {
	store  store.Store
	config ConfigStore
	notify *events.Notifier
	logger *slog.Logger
}

// New creates a field service.
func New(s store.Store, cfg ConfigStore, n *events.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = events.NewNotifier(nil, nil, logger)
	}
	return &Service{store: s, config: cfg, notify: n, logger: logger}
}

// Register adds the fields.* route.
func (s *Service) Register(r *dispatch.Router) error {
	return r.Handle(ConfigKey+".*", s.HandleChangedField, s.HandleDeletedField)
}

func configPath(uid string) string {
	return ConfigKey + "." + uid
}

// SaveField validates f and writes it to project config.
func (s *Service) SaveField(ctx context.Context, f *model.Field, validate bool) error {
	if validate {
		if err := s.validate(ctx, f); err != nil {
			return err
		}
	}
	if f.UID == "" {
		f.UID = idgen.UID()
	}

	cfg := map[string]any{
		"name":   f.Name,
		"handle": f.Handle,
		"type":   f.Type,
	}
	if f.Instructions != "" {
		cfg["instructions"] = f.Instructions
	}
	if err := s.config.Set(ctx, configPath(f.UID), cfg); err != nil {
		return fmt.Errorf("save field %s: %w", f.Handle, err)
	}

	live, err := s.store.GetFieldByUID(ctx, f.UID)
	if err != nil {
		return fmt.Errorf("resolving field %s: %w", f.UID, err)
	}
	f.ID = live.ID
	return nil
}

func (s *Service) validate(ctx context.Context, f *model.Field) error {
	ve := &model.ValidationError{}
	if err := model.ValidateField(f); err != nil {
		errors.As(err, &ve)
	}
	all, err := s.store.ListFields(ctx)
	if err != nil {
		return fmt.Errorf("listing fields: %w", err)
	}
	for _, other := range all {
		if other.UID != f.UID && other.Handle == f.Handle {
			ve.Add("handle", fmt.Sprintf("%q is already in use", f.Handle))
		}
	}
	return ve.Err()
}

// DeleteField removes the field's config.
func (s *Service) DeleteField(ctx context.Context, f *model.Field) error {
	if err := s.config.Remove(ctx, configPath(f.UID)); err != nil {
		return fmt.Errorf("delete field %s: %w", f.Handle, err)
	}
	return nil
}

// FieldByUID returns the live field with the given UID.
func (s *Service) FieldByUID(ctx context.Context, uid string) (*model.Field, error) {
	f, err := s.store.GetFieldByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, uid)
	}
	return f, err
}

// AllFields returns every live field.
func (s *Service) AllFields(ctx context.Context) ([]*model.Field, error) {
	return s.store.ListFields(ctx)
}

// HandleChangedField applies fields.<uid>.
func (s *Service) HandleChangedField(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	cfg := projectconfig.AsMap(ev.NewValue)

	var (
		f     *model.Field
		isNew bool
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		f, err = tx.GetFieldByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			f = &model.Field{UID: uid}
			isNew = true
		} else if err != nil {
			return fmt.Errorf("loading field: %w", err)
		}

		f.Name = projectconfig.String(cfg, "name")
		f.Handle = projectconfig.String(cfg, "handle")
		f.Type = projectconfig.String(cfg, "type")
		f.Instructions = projectconfig.String(cfg, "instructions")

		if isNew {
			return tx.CreateField(ctx, f)
		}
		return tx.UpdateField(ctx, f)
	})
	if err != nil {
		return err
	}

	s.notify.After(ctx, "", events.TopicFieldSaved, events.FieldSaved{Field: f, IsNew: isNew})
	return nil
}

// HandleDeletedField removes the field row. Layouts that placed the field
// lose it.
func (s *Service) HandleDeletedField(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	f, err := s.store.GetFieldByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading field: %w", err)
	}
	if err := s.store.DeleteField(ctx, f.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deleting field: %w", err)
	}
	s.notify.After(ctx, "", events.TopicFieldDeleted, events.FieldDeleted{FieldID: f.ID, FieldUID: uid})
	return nil
}
