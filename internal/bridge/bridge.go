package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/catalog"
	"github.com/toolbridge/odata-mcp/internal/client"
	"github.com/toolbridge/odata-mcp/internal/config"
	"github.com/toolbridge/odata-mcp/internal/exec"
	"github.com/toolbridge/odata-mcp/internal/mcp"
	"github.com/toolbridge/odata-mcp/internal/metrics"
	"github.com/toolbridge/odata-mcp/internal/models"
	"github.com/toolbridge/odata-mcp/internal/registry"
)

// Bridge wires the catalog builder, tool registry, execution coordinator
// and protocol dispatcher into one unit over a single OData service.
// Model updates arrive on a channel consumed by one goroutine, so catalog
// rebuilds are serialized while tool calls keep running against the
// previously published snapshot.
type Bridge struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	odata       *client.Client
	store       *registry.Store
	coordinator *exec.Coordinator
	server      *mcp.Server

	opts        *catalog.GenerationOptions
	policy      *catalog.AccessPolicy
	enforcement auth.EnforcementBehavior

	model   atomic.Pointer[models.EntityModel]
	updates chan *models.EntityModel
}

// New creates a bridge from configuration. The catalog starts empty; call
// ApplyModel (or push through ModelUpdates) once the schema is known.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Registry) (*Bridge, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("service URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	odata := client.New(cfg.ServiceURL, logger)
	if cfg.HasBearerAuth() {
		odata.SetBearerToken(cfg.BearerToken)
	} else if cfg.HasBasicAuth() {
		odata.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.RetryAttempts > 0 {
		rc := client.DefaultRetryConfig()
		rc.MaxRetries = cfg.RetryAttempts
		odata.SetRetryConfig(rc)
	}

	opts := &catalog.GenerationOptions{
		GenerateCrudTools:            cfg.GenerateCrudTools,
		GenerateQueryTools:           cfg.GenerateQueryTools,
		GenerateNavigationTools:      cfg.GenerateNavigationTools,
		ExcludeBinaryFieldsByDefault: cfg.ExcludeBinaryFields,
		AlwaysExcludePropertyTypes:   cfg.ParseExcludedTypes(),
		MaxToolCount:                 cfg.MaxToolCount,
		ToolVersion:                  cfg.ToolVersion,
		IncludeExamples:              cfg.IncludeExamples,
		ReadOnly:                     cfg.ReadOnly,
		Naming:                       catalog.ParseNamingConvention(cfg.Naming),
	}

	policy, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	enforcement := auth.ParseEnforcementBehavior(cfg.Enforcement)

	b := &Bridge{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		odata:       odata,
		store:       registry.NewStore(),
		opts:        opts,
		policy:      policy,
		enforcement: enforcement,
		updates:     make(chan *models.EntityModel, 1),
	}

	callTimeout := time.Duration(cfg.CallTimeout) * time.Second
	b.coordinator = exec.New(b.CurrentModel, odata.BaseURL(), enforcement, callTimeout, logger, m)
	b.server = mcp.NewServer(b.store, b.coordinator, enforcement, logger, m)

	return b, nil
}

// Server returns the protocol dispatcher for transport wiring.
func (b *Bridge) Server() *mcp.Server {
	return b.server
}

// Registry returns the tool registry store.
func (b *Bridge) Registry() *registry.Store {
	return b.store
}

// CurrentModel returns the model snapshot behind the published catalog,
// or nil before the first ApplyModel.
func (b *Bridge) CurrentModel() *models.EntityModel {
	return b.model.Load()
}

// SubmitModel queues a model for rebuild without blocking. When a rebuild
// is already pending the stale pending model is replaced: only the newest
// schema matters.
func (b *Bridge) SubmitModel(model *models.EntityModel) {
	for {
		select {
		case b.updates <- model:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}

// Run consumes model updates until ctx is cancelled. In-flight tool calls
// keep the snapshot they started with; only new lookups see the rebuilt
// catalog.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case model := <-b.updates:
			b.ApplyModel(model)
		}
	}
}

// ApplyModel rebuilds and publishes the catalog for a model snapshot.
// A nil model publishes an empty catalog.
func (b *Bridge) ApplyModel(model *models.EntityModel) {
	b.model.Store(model)

	opts := *b.opts
	opts.IncludeEntityTypes = b.allowedEntityTypes(model)

	tools := catalog.Build(model, &opts, b.policy)
	for _, t := range tools {
		t.Handler = b.bindHandler(t)
	}

	entitySets := 0
	if model != nil {
		entitySets = len(model.EntitySets)
	}

	b.store.Publish(registry.NewSnapshot(tools))
	b.metrics.SetCatalogSize(len(tools))
	b.logger.Info("catalog published",
		zap.Int("tools", len(tools)),
		zap.Int("entity_sets", entitySets),
		zap.String("service", b.cfg.ServiceURL))
}

// allowedEntityTypes resolves the configured entity filter patterns
// against the model. Nil means no filter.
func (b *Bridge) allowedEntityTypes(model *models.EntityModel) []string {
	patterns := b.cfg.ParseEntities()
	if len(patterns) == 0 || model == nil {
		return nil
	}

	var names []string
	for name := range model.EntityTypes {
		for _, pattern := range patterns {
			if matchesPattern(name, pattern) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	if names == nil {
		// Filter matched nothing: an empty allow-list, not "allow all".
		names = []string{}
	}
	return names
}

// matchesPattern checks a name against a filter pattern with simple
// leading/trailing wildcard support.
func matchesPattern(name, pattern string) bool {
	if pattern == name {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	}
	return false
}

// loadPolicy reads an access policy JSON file. An empty path yields a nil
// policy, which authorizes everything.
func loadPolicy(path string) (*catalog.AccessPolicy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var policy catalog.AccessPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return &policy, nil
}

// Summary describes the running bridge configuration and catalog, in the
// shape printed at startup and exposed for diagnostics.
type Summary struct {
	ServiceURL   string   `json:"service_url"`
	Transport    string   `json:"transport"`
	Naming       string   `json:"naming"`
	EntityFilter []string `json:"entity_filter,omitempty"`
	ReadOnly     bool     `json:"read_only"`
	Enforcement  string   `json:"enforcement"`
	EntityTypes  int      `json:"entity_types"`
	EntitySets   int      `json:"entity_sets"`
	TotalTools   int      `json:"total_tools"`
	ToolNames    []string `json:"tool_names"`
}

// Summarize reports the current service and catalog state.
func (b *Bridge) Summarize() *Summary {
	snap := b.store.Load()
	names := make([]string, 0, snap.Len())
	for _, t := range snap.Tools() {
		names = append(names, t.Name)
	}

	s := &Summary{
		ServiceURL:   b.cfg.ServiceURL,
		Transport:    b.cfg.Transport,
		Naming:       string(b.opts.Naming),
		EntityFilter: b.cfg.ParseEntities(),
		ReadOnly:     b.cfg.ReadOnly,
		Enforcement:  string(b.enforcement),
		TotalTools:   len(names),
		ToolNames:    names,
	}
	if model := b.CurrentModel(); model != nil {
		s.EntityTypes = len(model.EntityTypes)
		s.EntitySets = len(model.EntitySets)
	}
	return s
}
