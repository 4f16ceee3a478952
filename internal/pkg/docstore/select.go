package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PriceSync/internal/pkg/cache"
	"github.com/ManuelReschke/PriceSync/internal/pkg/database"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

// Config bundles the settings for both credential paths.
type Config struct {
	Database database.Config
	Cache    cache.Config
	Prefix   string
}

func LoadConfig() Config {
	return Config{
		Database: database.LoadConfig(),
		Cache:    cache.LoadConfig(),
		Prefix:   env.GetEnv("DOCSTORE_PREFIX", defaultRedisPrefix),
	}
}

// Paths is the backend selection made once at startup. Either field may be
// nil; it is never mutated after Select returns.
type Paths struct {
	Privileged Backend
	Degraded   Backend
}

// Active returns the path writes go through: privileged when available.
func (p *Paths) Active() Backend {
	if p == nil {
		return nil
	}
	if p.Privileged != nil {
		return p.Privileged
	}
	return p.Degraded
}

// Ordered returns the available paths in lookup order.
func (p *Paths) Ordered() []Backend {
	if p == nil {
		return nil
	}
	var out []Backend
	if p.Privileged != nil {
		out = append(out, p.Privileged)
	}
	if p.Degraded != nil {
		out = append(out, p.Degraded)
	}
	return out
}

func (p *Paths) String() string {
	var names []string
	for _, b := range p.Ordered() {
		names = append(names, b.Name())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Factory bootstraps one path. It returns an error when the path's
// credentials cannot be resolved.
type Factory func(ctx context.Context) (Backend, error)

// Select builds Paths from the environment-derived config.
func Select(ctx context.Context, cfg Config) (*Paths, error) {
	privileged := func(ctx context.Context) (Backend, error) {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewGormBackend(db), nil
	}
	degraded := func(ctx context.Context) (Backend, error) {
		if !cfg.Cache.Configured() {
			return nil, errors.New("degraded path credentials are not configured (CACHE_HOST)")
		}
		return NewRedisBackend(cache.NewClient(cfg.Cache), cfg.Prefix), nil
	}
	return SelectWith(ctx, privileged, degraded)
}

// SelectWith tries the privileged factory first and always wires the degraded
// one when it can be bootstrapped, so lookups can fall back to it.
func SelectWith(ctx context.Context, privileged, degraded Factory) (*Paths, error) {
	paths := &Paths{}
	var problems []string

	if privileged != nil {
		b, err := privileged(ctx)
		if err != nil {
			log.Warnf("[docstore] Privileged path unavailable, falling back to degraded path: %v", err)
			problems = append(problems, err.Error())
		} else {
			paths.Privileged = b
		}
	}
	if degraded != nil {
		b, err := degraded(ctx)
		if err != nil {
			log.Warnf("[docstore] Degraded path unavailable: %v", err)
			problems = append(problems, err.Error())
		} else {
			paths.Degraded = b
		}
	}

	if paths.Active() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, strings.Join(problems, "; "))
	}
	log.Infof("[docstore] Backend paths selected: %s (active: %s)", paths, paths.Active().Name())
	return paths, nil
}
