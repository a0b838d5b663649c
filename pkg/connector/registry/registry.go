// Package registry maps connector names to factories and keeps a catalog
// describing each connector. Connector packages register themselves from
// init, so importing a connector package is enough to make it available to
// the CLI and to pipelines built by name.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
)

// SourceFactory builds a source connector for one spreadsheet configuration.
type SourceFactory func(config *config.SpreadsheetConfig) (core.Source, error)

// DestinationFactory builds a destination connector for one spreadsheet configuration.
type DestinationFactory func(config *config.SpreadsheetConfig) (core.Destination, error)

// table is a name-to-factory map for one connector kind.
type table[F any] struct {
	kind      core.ConnectorType
	factories map[string]F
}

func newTable[F any](kind core.ConnectorType) table[F] {
	return table[F]{kind: kind, factories: make(map[string]F)}
}

func (t table[F]) add(name string, f F) error {
	if _, ok := t.factories[name]; ok {
		return errors.Newf(errors.ErrorTypeConfig, "%s connector %s already registered", t.kind, name)
	}
	t.factories[name] = f
	return nil
}

func (t table[F]) get(name string) (F, error) {
	f, ok := t.factories[name]
	if !ok {
		return f, errors.Newf(errors.ErrorTypeConfig, "%s connector %s not found", t.kind, name).
			WithDetail("available", t.names())
	}
	return f, nil
}

func (t table[F]) names() []string {
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the source and destination factories known by name. It is
// safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	sources      table[SourceFactory]
	destinations table[DestinationFactory]
	logger       *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      newTable[SourceFactory](core.ConnectorTypeSource),
		destinations: newTable[DestinationFactory](core.ConnectorTypeDestination),
		logger:       logger.Component("connector_registry"),
	}
}

// RegisterSource adds a source factory. Names are unique per kind.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sources.add(name, factory); err != nil {
		return err
	}
	r.logger.Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterDestination adds a destination factory.
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.destinations.add(name, factory); err != nil {
		return err
	}
	r.logger.Debug("destination connector registered", zap.String("name", name))
	return nil
}

// CreateSource builds the named source. An unknown name fails with a config
// error listing the available sources.
func (r *Registry) CreateSource(name string, cfg *config.SpreadsheetConfig) (core.Source, error) {
	r.mu.RLock()
	factory, err := r.sources.get(name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	src, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create source connector "+name)
	}
	return src, nil
}

// CreateDestination builds the named destination.
func (r *Registry) CreateDestination(name string, cfg *config.SpreadsheetConfig) (core.Destination, error) {
	r.mu.RLock()
	factory, err := r.destinations.get(name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	dst, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create destination connector "+name)
	}
	return dst, nil
}

// ListSources returns the source names in sorted order.
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources.names()
}

// ListDestinations returns the destination names in sorted order.
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destinations.names()
}

func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources.factories[name]
	return ok
}

func (r *Registry) HasDestination(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.destinations.factories[name]
	return ok
}

// Create builds connector name as a source or a destination, following
// cfg.Type. Exactly one of the connectors is non-nil on success.
func (r *Registry) Create(name string, cfg *config.SpreadsheetConfig) (core.Source, core.Destination, error) {
	switch core.ConnectorType(cfg.Type) {
	case core.ConnectorTypeSource:
		src, err := r.CreateSource(name, cfg)
		return src, nil, err
	case core.ConnectorTypeDestination:
		dst, err := r.CreateDestination(name, cfg)
		return nil, dst, err
	default:
		return nil, nil, errors.Newf(errors.ErrorTypeConfig, "unknown connector type %q", cfg.Type)
	}
}

func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

func RegisterDestination(name string, factory DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// CreateSource builds a source from the process-wide registry.
func CreateSource(name string, cfg *config.SpreadsheetConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// CreateDestination builds a destination from the process-wide registry.
func CreateDestination(name string, cfg *config.SpreadsheetConfig) (core.Destination, error) {
	return globalRegistry.CreateDestination(name, cfg)
}

func ListSources() []string { return globalRegistry.ListSources() }

func ListDestinations() []string { return globalRegistry.ListDestinations() }

func HasSource(name string) bool { return globalRegistry.HasSource(name) }

func HasDestination(name string) bool { return globalRegistry.HasDestination(name) }

// ConnectorInfo describes a registered connector for listings.
type ConnectorInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
	// Formats lists the file extensions the connector handles
	Formats      []string `json:"formats"`
	Capabilities []string `json:"capabilities"`
}

func (i *ConnectorInfo) key() string { return i.Type + "/" + i.Name }

// ConnectorCatalog stores ConnectorInfo keyed by type and name, so a source
// and a destination may share a name.
type ConnectorCatalog struct {
	mu         sync.RWMutex
	connectors map[string]*ConnectorInfo
}

func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{connectors: make(map[string]*ConnectorInfo)}
}

// Register adds info. A second entry with the same type and name fails.
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.connectors[info.key()]; ok {
		return errors.Newf(errors.ErrorTypeConfig, "%s connector %s already in catalog", info.Type, info.Name)
	}
	c.connectors[info.key()] = info
	return nil
}

func (c *ConnectorCatalog) Get(connectorType, name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.connectors[connectorType+"/"+name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s connector %s not found in catalog", connectorType, name)
	}
	return info, nil
}

// List returns the catalog sorted by type, then name.
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].key() < infos[j].key() })
	return infos
}

var globalCatalog = NewConnectorCatalog()

func RegisterConnectorInfo(info *ConnectorInfo) error { return globalCatalog.Register(info) }

// GetConnectorInfo looks up a connector in the process-wide catalog.
func GetConnectorInfo(connectorType, name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(connectorType, name)
}

func ListConnectorInfo() []*ConnectorInfo { return globalCatalog.List() }
