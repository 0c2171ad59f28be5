package store

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"schoolportal/internal/authevents"
	"schoolportal/internal/config"
	"schoolportal/internal/metrics"
	"schoolportal/internal/remote"
	"schoolportal/internal/remote/memory"
	"schoolportal/internal/remote/pgdata"
	"schoolportal/internal/remote/supabase"
	"schoolportal/internal/state"
)

// Resources are the connections and adapters selected by configuration.
type Resources struct {
	DB        *DB
	Redis     *Redis
	Bus       authevents.Bus
	Backend   remote.Backend
	Persister state.Persister
	// Postgres is set for the postgres backend so callers can migrate it.
	Postgres *pgdata.Backend
	// Memory is set for the memory backend.
	Memory *memory.Backend
}

// Open connects everything cfg asks for. m may be nil.
func Open(ctx context.Context, cfg config.App, m *metrics.Metrics) (*Resources, error) {
	res := &Resources{}
	if cfg.RedisAddr != "" {
		res.Redis = NewRedis(cfg.RedisAddr)
		if !res.Redis.Healthy(ctx) {
			log.Printf("redis %s not reachable yet", cfg.RedisAddr)
		}
	}

	var err error
	if res.Bus, err = openBus(cfg, res.Redis); err != nil {
		return nil, err
	}
	if res.Persister, err = openPersister(cfg, res.Redis); err != nil {
		return nil, err
	}

	var backend remote.Backend
	switch cfg.Backend {
	case config.BackendMemory:
		res.Memory = memory.New(res.Bus)
		backend = res.Memory
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
			return nil, errors.New("supabase backend needs SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		backend = supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, res.Bus, cfg.SupabaseTimeout)
	case config.BackendPostgres:
		if res.DB, err = NewDB(ctx, cfg.DatabaseURL); err != nil {
			res.Close()
			return nil, err
		}
		res.Postgres = pgdata.New(res.DB.Client, res.Bus, pgdata.Options{
			Issuer:     cfg.JWTIssuer,
			SigningKey: cfg.JWTSigningKey,
			SessionTTL: cfg.SessionTTL,
		})
		backend = res.Postgres
	default:
		return nil, errors.Errorf("unknown BACKEND %q", cfg.Backend)
	}
	res.Backend = metrics.Instrument(backend, m)
	return res, nil
}

func openBus(cfg config.App, r *Redis) (authevents.Bus, error) {
	switch cfg.EventBus {
	case "", "memory":
		return authevents.NewInMemory(16), nil
	case "redis":
		if r == nil {
			return nil, errors.New("EVENT_BUS=redis needs REDIS_ADDR")
		}
		return authevents.NewRedis(r.Client, cfg.EventChannel), nil
	default:
		return nil, errors.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
	}
}

func openPersister(cfg config.App, r *Redis) (state.Persister, error) {
	switch cfg.IdentityStore {
	case "", "memory":
		return state.NewMemoryPersister(), nil
	case "redis":
		if r == nil {
			return nil, errors.New("IDENTITY_STORE=redis needs REDIS_ADDR")
		}
		return state.NewRedisPersister(r.Client, cfg.IdentityKey), nil
	case "file":
		return state.NewFilePersister(cfg.IdentityFile), nil
	default:
		return nil, errors.Errorf("unknown IDENTITY_STORE %q", cfg.IdentityStore)
	}
}

// Healthy reports the reachability of every opened connection.
func (r *Resources) Healthy(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	if r.DB != nil {
		out["postgres"] = r.DB.Healthy(ctx)
	}
	if r.Redis != nil {
		out["redis"] = r.Redis.Healthy(ctx)
	}
	return out
}

func (r *Resources) Close() error {
	var first error
	if err := r.DB.Close(); err != nil {
		first = err
	}
	if err := r.Redis.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
