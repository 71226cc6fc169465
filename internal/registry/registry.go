// Package registry builds and memoizes the coordination core's
// component set. Components are singletons keyed by a fingerprint of
// the configuration that built them: asking again with an equal config
// returns the same instances, while a changed config rebuilds them.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/blackms/aistack-sub001/internal/api"
	"github.com/blackms/aistack-sub001/internal/config"
	"github.com/blackms/aistack-sub001/internal/consensus"
	"github.com/blackms/aistack-sub001/internal/dispatch"
	"github.com/blackms/aistack-sub001/internal/governor"
	"github.com/blackms/aistack-sub001/internal/queue"
	"github.com/blackms/aistack-sub001/internal/router"
	"github.com/blackms/aistack-sub001/internal/state"
)

// Components is one wired instance of the coordination core.
type Components struct {
	Config     *config.Config
	Queue      *queue.Queue
	Router     *router.Router
	Consensus  *consensus.Service
	Governor   *governor.Governor
	Dispatcher *dispatch.Dispatcher
	// Store is the SQLite store, nil when storage is disabled.
	Store *state.DB
}

// Close releases resources held by the component set.
func (c *Components) Close() error {
	c.Governor.Stop()
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}

var (
	mu         sync.Mutex
	current    *Components
	currentKey string
)

// Fingerprint returns a stable hash of the configuration.
func Fingerprint(cfg *config.Config) (string, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the component set for the given configuration, building
// it on first use and reusing it while the configuration is unchanged.
func Get(cfg *config.Config) (*Components, error) {
	key, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	if current != nil && currentKey == key {
		return current, nil
	}

	components, err := build(cfg)
	if err != nil {
		return nil, err
	}

	if current != nil {
		if err := current.Close(); err != nil {
			log.Printf("[registry] close previous components: %v", err)
		}
	}
	current = components
	currentKey = key
	return current, nil
}

// Rebuild discards any memoized component set and builds a fresh one.
func Rebuild(cfg *config.Config) (*Components, error) {
	Reset()
	return Get(cfg)
}

// Reset discards the memoized component set.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		if err := current.Close(); err != nil {
			log.Printf("[registry] close components: %v", err)
		}
	}
	current = nil
	currentKey = ""
}

// build wires a component set from the configuration.
func build(cfg *config.Config) (*Components, error) {
	var store *state.DB
	if cfg.Storage.Enabled {
		db, err := state.Open(cfg.StoragePath())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		store = db
	}

	// The dispatcher degrades without a completer; a missing API key
	// must not break the rest of the core.
	var completer api.ChatCompleter
	if cfg.Dispatch.Enabled {
		client, err := api.NewClient(cfg.ToClient())
		if err != nil {
			log.Printf("[registry] dispatch completer unavailable: %v", err)
		} else {
			completer = client
		}
	}

	var consensusStore consensus.Store
	var consensusTasks consensus.TaskResolver
	var governorStore governor.Store
	if store != nil {
		consensusStore = store
		consensusTasks = store
		governorStore = store
	}

	return &Components{
		Config:     cfg,
		Queue:      queue.New(),
		Router:     router.New(),
		Consensus:  consensus.NewService(cfg.ToConsensus(), consensusStore, consensusTasks),
		Governor:   governor.New(cfg.ToGovernor(), governorStore),
		Dispatcher: dispatch.NewDispatcher(cfg.ToDispatch(), completer),
		Store:      store,
	}, nil
}
