package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/constants"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/metrics"
	models "rubicon/flightlog/internal/models/gorm"
)

// Store is the persisted catalog table.
type Store interface {
	LoadAll(ctx context.Context) ([]models.ReferenceEntity, error)
	CreateIgnoreConflicts(ctx context.Context, entities []models.ReferenceEntity) (int64, error)
	UpdateDisplayName(ctx context.Context, domain, comparisonKey, displayName, kind string) error
}

// Catalog deduplicates free-text category values. Lookups are served from an
// in-memory cache; new keys are staged and written by Flush.
type Catalog struct {
	store   Store
	cache   common.CacheInterface
	ttl     time.Duration
	metrics *metrics.Registry

	mu       sync.Mutex
	staged   map[string]*models.ReferenceEntity
	upgrades map[string]*models.ReferenceEntity
}

func New(store Store, cache common.CacheInterface, ttl time.Duration, m *metrics.Registry) *Catalog {
	if ttl <= 0 {
		ttl = common.NoExpiration
	}
	return &Catalog{
		store:    store,
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
		staged:   make(map[string]*models.ReferenceEntity),
		upgrades: make(map[string]*models.ReferenceEntity),
	}
}

func cacheKey(d Domain, comparisonKey string) string {
	return string(constants.CachePrefixReference) + string(d) + ":" + comparisonKey
}

// Load seeds the cache from the store.
func (c *Catalog) Load(ctx context.Context) error {
	entities, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reference entities: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.absorb(entities)
	logging.Info("[Catalog] Loaded reference entities", "count", len(entities))
	return nil
}

// absorb replaces cached entries with authoritative rows. Caller holds c.mu.
func (c *Catalog) absorb(entities []models.ReferenceEntity) {
	for i := range entities {
		e := entities[i]
		key := cacheKey(Domain(e.Domain), e.ComparisonKey)

		// Another importer created a key we still have staged: keep its row,
		// carry over our display form if it is more specific.
		if s, ok := c.staged[key]; ok {
			delete(c.staged, key)
			if MoreSpecific(s.DisplayName, e.DisplayName) {
				e.DisplayName = s.DisplayName
				e.Kind = s.Kind
				c.upgrades[key] = &e
			}
		}
		c.cache.Set(key, &e, c.ttl)
	}
}

// Resolve maps raw to its reference entity, staging a new one on a miss.
// Blank values resolve to nothing.
func (c *Catalog) Resolve(raw string, d Domain) (models.ReferenceEntity, bool) {
	if IsBlank(raw) {
		return models.ReferenceEntity{}, false
	}
	normalized := Normalize(raw, d)
	if normalized == "" {
		return models.ReferenceEntity{}, false
	}
	comparison := ComparisonKey(normalized, d)
	display := DisplayName(raw, d)
	key := cacheKey(d, comparison)

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(key); ok {
		e := v.(*models.ReferenceEntity)
		if MoreSpecific(display, e.DisplayName) {
			e.DisplayName = display
			if d == DomainPlatform {
				e.Kind = PlatformKind(display)
			}
			if _, staged := c.staged[key]; !staged {
				c.upgrades[key] = e
			}
		}
		return *e, true
	}

	e := &models.ReferenceEntity{
		ID:            uuid.NewString(),
		Domain:        string(d),
		ComparisonKey: comparison,
		NormalizedKey: normalized,
		DisplayName:   display,
	}
	if d == DomainPlatform {
		e.Kind = PlatformKind(display)
	}
	c.staged[key] = e
	c.cache.Set(key, e, c.ttl)
	c.metrics.CatalogMiss(string(d))
	return *e, true
}

// Lookup returns the cached entity for an already normalized comparison key.
func (c *Catalog) Lookup(d Domain, comparisonKey string) (models.ReferenceEntity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(cacheKey(d, comparisonKey))
	if !ok {
		return models.ReferenceEntity{}, false
	}
	return *v.(*models.ReferenceEntity), true
}

// Pending returns the number of staged entities and display upgrades.
func (c *Catalog) Pending() (staged, upgrades int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.staged), len(c.upgrades)
}

// Flush writes staged entities with ignore-conflict semantics, persists display
// upgrades and reloads the cache from the store.
func (c *Catalog) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	byDomain := make(map[Domain][]models.ReferenceEntity)
	for _, e := range c.staged {
		byDomain[Domain(e.Domain)] = append(byDomain[Domain(e.Domain)], *e)
	}
	upgrades := make(map[string]models.ReferenceEntity, len(c.upgrades))
	for key, e := range c.upgrades {
		upgrades[key] = *e
	}
	c.upgrades = make(map[string]*models.ReferenceEntity)
	c.mu.Unlock()
	upgraded := len(upgrades)

	created := 0
	for _, d := range Domains {
		batch := byDomain[d]
		if len(batch) == 0 {
			continue
		}
		n, err := c.store.CreateIgnoreConflicts(ctx, batch)
		if err != nil {
			c.requeue(upgrades)
			return created, fmt.Errorf("failed to create %s entities: %w", d, err)
		}
		created += int(n)
		c.metrics.CatalogCreated(string(d), int(n))
	}

	for key, e := range upgrades {
		if err := c.store.UpdateDisplayName(ctx, e.Domain, e.ComparisonKey, e.DisplayName, e.Kind); err != nil {
			c.requeue(upgrades)
			return created, fmt.Errorf("failed to upgrade display name of %s/%s: %w", e.Domain, e.ComparisonKey, err)
		}
		delete(upgrades, key)
	}

	entities, err := c.store.LoadAll(ctx)
	if err != nil {
		return created, fmt.Errorf("failed to reload reference entities: %w", err)
	}

	c.mu.Lock()
	c.absorb(entities)
	c.mu.Unlock()

	if created > 0 || upgraded > 0 {
		logging.Info("[Catalog] Flushed reference entities",
			"created", created,
			"upgraded", upgraded,
		)
	}
	return created, nil
}

// requeue puts display upgrades that were not written back in the pending set,
// unless a newer upgrade for the same key is already queued.
func (c *Catalog) requeue(upgrades map[string]models.ReferenceEntity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range upgrades {
		e := e
		if _, queued := c.upgrades[key]; !queued {
			c.upgrades[key] = &e
		}
	}
}

// Reset drops every cached and staged entry. The next Load rebuilds the cache.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
	c.staged = make(map[string]*models.ReferenceEntity)
	c.upgrades = make(map[string]*models.ReferenceEntity)
}
