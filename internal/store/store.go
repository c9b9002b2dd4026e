// Package store persists MCP server configurations in an embedded BadgerDB.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

const keyPrefix = "server:"

var (
	// ErrNotFound is returned for IDs with no stored config.
	ErrNotFound = errors.New("store: server config not found")
	// ErrExists is returned by Create when the ID is taken.
	ErrExists = errors.New("store: server config already exists")
)

// Format selects the encoding of Export and Import.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml"; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("store: unsupported format %q (allowed: json, yaml)", s)
	}
}

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// Store is a BadgerDB-backed collection of server configs keyed by ID.
type Store struct {
	db     *badgerdb.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bopts := badgerdb.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.NumVersionsToKeep = 1
	bopts.ValueLogFileSize = 16 << 20

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger db: %w", err)
	}
	logger.Info("server config store opened", slog.String("path", opts.Path), slog.Bool("inMemory", opts.InMemory))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(id string) []byte { return []byte(keyPrefix + id) }

// Create validates cfg and stores it. An empty ID is replaced by a UUID. New
// configs start inactive.
func (s *Store) Create(ctx context.Context, cfg mcpmgr.ServerConfig) (mcpmgr.ServerConfig, error) {
	cfg = cfg.Clone()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return mcpmgr.ServerConfig{}, err
	}
	now := s.now().UTC()
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	cfg.IsActive = false

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key(cfg.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, cfg.ID)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return put(txn, cfg)
	})
	if err != nil {
		return mcpmgr.ServerConfig{}, wrap("create", err)
	}
	s.logger.Debug("server config created", slog.Any("config", cfg))
	return cfg, nil
}

// Get returns the config stored under id.
func (s *Store) Get(ctx context.Context, id string) (mcpmgr.ServerConfig, error) {
	var cfg mcpmgr.ServerConfig
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		cfg, err = get(txn, id)
		return err
	})
	if err != nil {
		return mcpmgr.ServerConfig{}, wrap("get", err)
	}
	return cfg, nil
}

// List returns every config ordered by creation time, then ID.
func (s *Store) List(ctx context.Context) ([]mcpmgr.ServerConfig, error) {
	configs := []mcpmgr.ServerConfig{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var cfg mcpmgr.ServerConfig
				if err := json.Unmarshal(val, &cfg); err != nil {
					return err
				}
				configs = append(configs, cfg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list", err)
	}
	slices.SortStableFunc(configs, func(a, b mcpmgr.ServerConfig) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return configs, nil
}

// Update replaces the stored config with cfg, keeping its creation time and
// active flag.
func (s *Store) Update(ctx context.Context, cfg mcpmgr.ServerConfig) (mcpmgr.ServerConfig, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return mcpmgr.ServerConfig{}, err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		prev, err := get(txn, cfg.ID)
		if err != nil {
			return err
		}
		cfg.CreatedAt = prev.CreatedAt
		cfg.IsActive = prev.IsActive
		cfg.UpdatedAt = s.now().UTC()
		return put(txn, cfg)
	})
	if err != nil {
		return mcpmgr.ServerConfig{}, wrap("update", err)
	}
	return cfg, nil
}

// SetActive records whether the server is currently connected.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		cfg, err := get(txn, id)
		if err != nil {
			return err
		}
		if cfg.IsActive == active {
			return nil
		}
		cfg.IsActive = active
		cfg.UpdatedAt = s.now().UTC()
		return put(txn, cfg)
	})
	return wrap("set active", err)
}

// Delete removes the config stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if err != nil {
		return wrap("delete", err)
	}
	s.logger.Debug("server config deleted", slog.String("id", id))
	return nil
}

// Active returns the configs flagged active, for reconnecting on startup.
func (s *Store) Active(ctx context.Context) ([]mcpmgr.ServerConfig, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(c mcpmgr.ServerConfig) bool { return !c.IsActive }), nil
}

func get(txn *badgerdb.Txn, id string) (mcpmgr.ServerConfig, error) {
	var cfg mcpmgr.ServerConfig
	item, err := txn.Get(key(id))
	if err != nil {
		return cfg, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cfg)
	})
	return cfg, err
}

func put(txn *badgerdb.Txn, cfg mcpmgr.ServerConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal server config: %w", err)
	}
	return txn.Set(key(cfg.ID), data)
}

// wrap maps badger's missing-key error onto ErrNotFound and prefixes the
// rest with the failed operation.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badgerdb.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, ErrExists):
		return err
	default:
		return fmt.Errorf("store: %s: %w", op, err)
	}
}

// Document is the export and import envelope.
type Document struct {
	Version int                   `json:"version" yaml:"version"`
	Servers []mcpmgr.ServerConfig `json:"servers" yaml:"servers"`
}

const documentVersion = 1

// Export encodes every stored config.
func (s *Store) Export(ctx context.Context, format Format) ([]byte, error) {
	configs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	doc := Document{Version: documentVersion, Servers: configs}
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return json.MarshalIndent(doc, "", "  ")
	}
}

// ImportResult reports what Import did.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Import decodes data and upserts every valid config. Invalid entries are
// skipped and reported. Imported configs are stored inactive.
func (s *Store) Import(ctx context.Context, data []byte, format Format) (ImportResult, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("store: decode %s import: %w", format, err)
	}

	var res ImportResult
	for i, cfg := range doc.Servers {
		if strings.TrimSpace(cfg.ID) == "" {
			cfg.ID = uuid.NewString()
		}
		if err := cfg.Validate(); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("server %d (%s): %v", i, cfg.ID, err))
			continue
		}
		if err := s.upsert(cfg); err != nil {
			return res, err
		}
		res.Imported++
	}
	s.logger.Info("server configs imported", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}

func (s *Store) upsert(cfg mcpmgr.ServerConfig) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		now := s.now().UTC()
		cfg.CreatedAt = now
		if prev, err := get(txn, cfg.ID); err == nil {
			cfg.CreatedAt = prev.CreatedAt
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		cfg.UpdatedAt = now
		cfg.IsActive = false
		return put(txn, cfg)
	})
	return wrap("import", err)
}
