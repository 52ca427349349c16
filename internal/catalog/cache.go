package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"medical-triage/internal/platform/logging"
)

// Cache keeps a validated in-memory copy of a slower Source.
// Point lookups that miss the copy fall through to the source.
type Cache struct {
	source Source
	mem    *MemoryCatalog
}

func NewCache(source Source) *Cache {
	return &Cache{source: source, mem: NewMemory(Snapshot{})}
}

// Refresh reloads the whole catalog. Entries failing validation are logged and
// skipped; the previous copy is kept if loading itself fails.
func (c *Cache) Refresh(ctx context.Context) error {
	log := logging.FromContext(ctx)

	var snap Snapshot
	var err error
	if snap.Conditions, err = c.source.ListConditions(ctx); err != nil {
		return fmt.Errorf("refresh conditions: %w", err)
	}
	if snap.Scenarios, err = c.source.ListScenarios(ctx); err != nil {
		return fmt.Errorf("refresh scenarios: %w", err)
	}
	if snap.Symptoms, err = c.source.ListSymptoms(ctx); err != nil {
		return fmt.Errorf("refresh symptoms: %w", err)
	}

	valid, verr := Validate(snap)
	if verr != nil {
		var merr *multierror.Error
		if errors.As(verr, &merr) {
			for _, e := range merr.Errors {
				log.Warn("skipping invalid catalog entry", "error", e)
			}
		}
	}

	c.mem.Replace(valid)
	log.Info("catalog refreshed",
		"conditions", len(valid.Conditions),
		"scenarios", len(valid.Scenarios),
		"symptoms", len(valid.Symptoms),
	)
	return nil
}

// Version changes after every successful Refresh.
func (c *Cache) Version() uint64 {
	return c.mem.Version()
}

func (c *Cache) ListConditions(ctx context.Context) ([]Condition, error) {
	return c.mem.ListConditions(ctx)
}

func (c *Cache) GetCondition(ctx context.Context, id string) (*Condition, error) {
	if cond, err := c.mem.GetCondition(ctx, id); err == nil {
		return cond, nil
	}
	return c.source.GetCondition(ctx, id)
}

func (c *Cache) ListScenarios(ctx context.Context) ([]Scenario, error) {
	return c.mem.ListScenarios(ctx)
}

func (c *Cache) GetScenario(ctx context.Context, id string) (*Scenario, error) {
	if s, err := c.mem.GetScenario(ctx, id); err == nil {
		return s, nil
	}
	return c.source.GetScenario(ctx, id)
}

func (c *Cache) ListScenariosByDisease(ctx context.Context, diseaseKey string) ([]Scenario, error) {
	return c.mem.ListScenariosByDisease(ctx, diseaseKey)
}

func (c *Cache) ListSymptoms(ctx context.Context) ([]SymptomDefinition, error) {
	return c.mem.ListSymptoms(ctx)
}
