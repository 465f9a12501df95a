// Package sites reconciles sites.* project config into site rows and serves
// the site registry that other reconcilers resolve site UIDs against.
package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/idgen"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/store"
)

// ConfigKey is the root config path of sites.
const ConfigKey = "sites"

var (
	// ErrSiteNotFound is returned when a site ID or UID has no live row.
	ErrSiteNotFound = errors.New("site not found")
	// ErrPrimarySite is returned when deleting the primary site.
	ErrPrimarySite = errors.New("the primary site cannot be deleted")
)

// ConfigStore is the part of the project config manager the service writes
// through.
type ConfigStore interface {
	Set(ctx context.Context, path string, value any) error
	Remove(ctx context.Context, path string) error
	Batch(ctx context.Context, fn func() error) error
}

// Service saves sites through project config and applies site config to the
// store.
type Service struct {
	store  store.Store
	config ConfigStore
	notify *events.Notifier
	logger *slog.Logger

	mu    sync.Mutex
	sites []*model.Site // nil until first read
}

// New creates a site service.
func New(s store.Store, cfg ConfigStore, n *events.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = events.NewNotifier(nil, nil, logger)
	}
	return &Service{store: s, config: cfg, notify: n, logger: logger}
}

// Register adds the sites.* route.
func (s *Service) Register(r *dispatch.Router) error {
	return r.Handle(ConfigKey+".*", s.HandleChangedSite, s.HandleDeletedSite)
}

func configPath(uid string) string {
	return ConfigKey + "." + uid
}

func siteConfig(site *model.Site) map[string]any {
	return map[string]any{
		"name":      site.Name,
		"handle":    site.Handle,
		"primary":   site.Primary,
		"baseUrl":   site.BaseURL,
		"sortOrder": site.SortOrder,
	}
}

// SaveSite validates site and writes it to project config. The first site
// saved becomes primary; saving a primary site demotes the previous one.
func (s *Service) SaveSite(ctx context.Context, site *model.Site, validate bool) error {
	all, err := s.AllSites(ctx)
	if err != nil {
		return err
	}

	if validate {
		if err := s.validate(site, all); err != nil {
			return err
		}
	}

	if site.ID == 0 {
		if site.UID == "" {
			site.UID = idgen.UID()
		}
		maxSort := 0
		for _, other := range all {
			maxSort = max(maxSort, other.SortOrder)
		}
		if site.SortOrder == 0 {
			site.SortOrder = maxSort + 1
		}
	}
	if len(all) == 0 {
		site.Primary = true
	}

	err = s.config.Batch(ctx, func() error {
		if site.Primary {
			for _, other := range all {
				if other.Primary && other.UID != site.UID {
					if err := s.config.Set(ctx, configPath(other.UID)+".primary", false); err != nil {
						return err
					}
				}
			}
		}
		return s.config.Set(ctx, configPath(site.UID), siteConfig(site))
	})
	if err != nil {
		return fmt.Errorf("save site %s: %w", site.Handle, err)
	}

	live, err := s.SiteByUID(ctx, site.UID)
	if err != nil {
		return err
	}
	site.ID = live.ID
	return nil
}

func (s *Service) validate(site *model.Site, all []*model.Site) error {
	err := model.ValidateSite(site)
	ve := &model.ValidationError{}
	if err != nil {
		errors.As(err, &ve)
	}
	for _, other := range all {
		if other.UID == site.UID {
			if other.Primary && !site.Primary {
				ve.Add("primary", "promote another site instead of demoting the primary site")
			}
			continue
		}
		if other.Handle == site.Handle {
			ve.Add("handle", fmt.Sprintf("%q is already in use", site.Handle))
		}
	}
	return ve.Err()
}

// DeleteSite removes the site's config. The primary site cannot be deleted.
func (s *Service) DeleteSite(ctx context.Context, site *model.Site) error {
	if site.Primary {
		return ErrPrimarySite
	}
	if err := s.config.Remove(ctx, configPath(site.UID)); err != nil {
		return fmt.Errorf("delete site %s: %w", site.Handle, err)
	}
	return nil
}

// DeleteSiteByID looks the site up and deletes it.
func (s *Service) DeleteSiteByID(ctx context.Context, id int64) error {
	site, err := s.SiteByID(ctx, id)
	if err != nil {
		return err
	}
	return s.DeleteSite(ctx, site)
}

// HandleChangedSite applies sites.<uid>.
func (s *Service) HandleChangedSite(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	cfg := projectconfig.AsMap(ev.NewValue)

	var (
		site  *model.Site
		isNew bool
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		site, err = tx.GetSiteByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			site = &model.Site{UID: uid}
			isNew = true
		} else if err != nil {
			return fmt.Errorf("loading site: %w", err)
		}

		site.Name = projectconfig.String(cfg, "name")
		site.Handle = projectconfig.String(cfg, "handle")
		site.Primary = projectconfig.Bool(cfg, "primary")
		site.BaseURL = projectconfig.String(cfg, "baseUrl")
		site.SortOrder = projectconfig.Int(cfg, "sortOrder")

		if isNew {
			return tx.CreateSite(ctx, site)
		}
		return tx.UpdateSite(ctx, site)
	})
	if err != nil {
		return err
	}

	s.Invalidate()
	s.notify.After(ctx, events.AfterSaveSite, events.TopicSiteSaved, events.SiteSaved{Site: site, IsNew: isNew})
	return nil
}

// HandleDeletedSite removes the site row together with the section settings
// and entry rows that belong to it.
func (s *Service) HandleDeletedSite(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	site, err := s.store.GetSiteByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading site: %w", err)
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteSiteSettingsBySite(ctx, site.ID); err != nil {
			return fmt.Errorf("deleting section settings: %w", err)
		}
		if err := tx.DeleteEntrySitesBySite(ctx, site.ID); err != nil {
			return fmt.Errorf("deleting entry rows: %w", err)
		}
		return tx.DeleteSite(ctx, site.ID)
	})
	if err != nil {
		return err
	}

	s.Invalidate()
	s.notify.After(ctx, events.AfterDeleteSite, events.TopicSiteDeleted, events.SiteDeleted{SiteID: site.ID, SiteUID: uid})
	return nil
}

// Invalidate drops the cached site list.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.sites = nil
	s.mu.Unlock()
}

func (s *Service) load(ctx context.Context) ([]*model.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sites == nil {
		sites, err := s.store.ListSites(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sites: %w", err)
		}
		if sites == nil {
			sites = []*model.Site{}
		}
		s.sites = sites
	}
	return s.sites, nil
}

// AllSites returns copies of every site ordered by sort order.
func (s *Service) AllSites(ctx context.Context) ([]*model.Site, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Site, len(sites))
	for i, site := range sites {
		cp := *site
		out[i] = &cp
	}
	return out, nil
}

// AllSiteIDs returns the IDs of every site ordered by sort order.
func (s *Service) AllSiteIDs(ctx context.Context) ([]int64, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(sites))
	for i, site := range sites {
		ids[i] = site.ID
	}
	return ids, nil
}

// PrimarySiteID returns the primary site's ID, or 0 when no site exists.
func (s *Service) PrimarySiteID(ctx context.Context) (int64, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	for _, site := range sites {
		if site.Primary {
			return site.ID, nil
		}
	}
	if len(sites) > 0 {
		return sites[0].ID, nil
	}
	return 0, nil
}

// SiteByID returns a copy of the site with the given ID.
func (s *Service) SiteByID(ctx context.Context, id int64) (*model.Site, error) {
	return s.find(ctx, func(site *model.Site) bool { return site.ID == id }, fmt.Sprint(id))
}

// SiteByUID returns a copy of the site with the given UID.
func (s *Service) SiteByUID(ctx context.Context, uid string) (*model.Site, error) {
	return s.find(ctx, func(site *model.Site) bool { return site.UID == uid }, uid)
}

func (s *Service) find(ctx context.Context, match func(*model.Site) bool, key string) (*model.Site, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, site := range sites {
		if match(site) {
			cp := *site
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, key)
}

// IDsForUIDs maps site UIDs to IDs. Unknown UIDs are left out.
func (s *Service) IDsForUIDs(ctx context.Context, uids []string) (map[string]int64, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(uids))
	for _, uid := range uids {
		want[uid] = true
	}
	out := make(map[string]int64, len(uids))
	for _, site := range sites {
		if want[site.UID] {
			out[site.UID] = site.ID
		}
	}
	return out, nil
}

// UIDsForIDs maps site IDs to UIDs. Unknown IDs are left out.
func (s *Service) UIDsForIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]string, len(ids))
	for _, site := range sites {
		if want[site.ID] {
			out[site.ID] = site.UID
		}
	}
	return out, nil
}

// SortedUIDs returns the keys of a UID-keyed config map in site sort order.
// UIDs without a live site sort last, by UID.
func (s *Service) SortedUIDs(ctx context.Context, byUID map[string]any) ([]string, error) {
	sites, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(sites))
	for i, site := range sites {
		rank[site.UID] = i
	}
	uids := make([]string, 0, len(byUID))
	for uid := range byUID {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool {
		ri, iok := rank[uids[i]]
		rj, jok := rank[uids[j]]
		if iok != jok {
			return iok
		}
		if iok && ri != rj {
			return ri < rj
		}
		return uids[i] < uids[j]
	})
	return uids, nil
}
