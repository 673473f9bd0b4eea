package main

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/bridge"
	"github.com/toolbridge/odata-mcp/internal/config"
	"github.com/toolbridge/odata-mcp/internal/logging"
	"github.com/toolbridge/odata-mcp/internal/metrics"
	"github.com/toolbridge/odata-mcp/internal/models"
	"github.com/toolbridge/odata-mcp/internal/transport"
	"github.com/toolbridge/odata-mcp/internal/transport/http"
	"github.com/toolbridge/odata-mcp/internal/transport/stdio"
)

var (
	cfg       *config.Config
	modelFile string
)

var rootCmd = &cobra.Command{
	Use:   "odata-mcp [service-url]",
	Short: "OData to MCP bridge - exposes an OData schema as MCP tools",
	Long: `OData to MCP bridge.

Builds a catalog of callable tools from an OData entity model and serves
them over the Model Context Protocol (JSON-RPC 2.0), via line-delimited
stdio frames or an HTTP endpoint.

Examples:
  odata-mcp --model schema.json https://services.odata.org/V2/Northwind/Northwind.svc/
  odata-mcp --model schema.json --read-only --entities 'Product*,Categories' https://my-service/odata/
  odata-mcp --model schema.json --transport http --http-addr :8080 https://my-service/odata/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBridge,
}

func init() {
	// Load .env file if it exists
	godotenv.Load()

	cfg = &config.Config{}

	// Service and model
	rootCmd.Flags().StringVar(&cfg.ServiceURL, "service", "", "URL of the OData service (overrides positional argument and ODATA_SERVICE_URL)")
	rootCmd.Flags().StringVar(&modelFile, "model", "", "Path to the entity model JSON file; reloaded on SIGHUP")

	// Upstream authentication
	rootCmd.Flags().StringVarP(&cfg.Username, "user", "u", "", "Username for basic authentication")
	rootCmd.Flags().StringVarP(&cfg.Password, "password", "p", "", "Password for basic authentication")
	rootCmd.Flags().StringVar(&cfg.BearerToken, "bearer-token", "", "Bearer token for upstream authentication")

	// Inbound caller authentication (HTTP transport)
	rootCmd.Flags().StringVar(&cfg.JWTSecret, "jwt-secret", "", "HS256 secret for validating caller bearer tokens (HTTP transport)")
	rootCmd.Flags().StringVar(&cfg.JWTIssuer, "jwt-issuer", "", "Required issuer claim for caller tokens")
	rootCmd.Flags().StringVar(&cfg.JWTAudience, "jwt-audience", "", "Required audience claim for caller tokens")

	// Tool generation
	rootCmd.Flags().BoolVar(&cfg.GenerateQueryTools, "query-tools", true, "Generate list_ query tools")
	rootCmd.Flags().BoolVar(&cfg.GenerateCrudTools, "crud-tools", true, "Generate get_/create_/update_/delete_ tools")
	rootCmd.Flags().BoolVar(&cfg.GenerateNavigationTools, "navigation-tools", true, "Generate navigation and relationship tools")
	rootCmd.Flags().BoolVar(&cfg.ExcludeBinaryFields, "exclude-binary-fields", false, "Attach a default $select that omits binary/stream properties")
	rootCmd.Flags().StringVar(&cfg.ExcludePropertyTypes, "exclude-property-types", "", "Comma-separated extra property types to exclude from the default $select")
	rootCmd.Flags().IntVar(&cfg.MaxToolCount, "max-tools", 0, "Cap the catalog size; navigation tools are dropped first (0 = no cap)")
	rootCmd.Flags().StringVar(&cfg.ToolVersion, "tool-version", "", "Version string stamped into tool metadata")
	rootCmd.Flags().BoolVar(&cfg.IncludeExamples, "include-examples", false, "Attach example invocations to generated tools")
	rootCmd.Flags().StringVar(&cfg.Naming, "naming", "snake_case", "Tool naming convention: snake_case, kebab-case, camelCase or PascalCase")

	// Filtering and authorization
	rootCmd.Flags().StringVar(&cfg.Entities, "entities", "", "Comma-separated entity filter, wildcards supported (e.g. 'Product*,Categories')")
	rootCmd.Flags().StringVar(&cfg.Enforcement, "enforcement", "deny", "Authorization enforcement: filter, deny or log")
	rootCmd.Flags().StringVar(&cfg.PolicyFile, "policy-file", "", "Path to an access policy JSON file")

	// Transport
	rootCmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "Transport type: 'stdio' or 'http'")
	rootCmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP server address (used with --transport http)")
	rootCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics listener (empty = disabled)")

	// Behavior
	rootCmd.Flags().BoolVar(&cfg.ReadOnly, "read-only", false, "Read-only mode: no create, update, delete or relationship tools")
	rootCmd.Flags().IntVar(&cfg.CallTimeout, "call-timeout", 30, "Per tool call timeout in seconds")
	rootCmd.Flags().IntVar(&cfg.RetryAttempts, "retry-attempts", 0, "Upstream retry attempts on transient failures (0 = default)")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging to stderr")
	rootCmd.Flags().BoolVar(&cfg.PrintSummary, "summary", false, "Build the catalog, print a summary and exit")

	// Bind flags to viper for environment variable support
	viper.BindPFlag("service", rootCmd.Flags().Lookup("service"))
	viper.BindPFlag("username", rootCmd.Flags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.Flags().Lookup("password"))
	viper.BindPFlag("bearer_token", rootCmd.Flags().Lookup("bearer-token"))
	viper.BindPFlag("jwt_secret", rootCmd.Flags().Lookup("jwt-secret"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ODATA")
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger := logging.New(cfg.Verbose)
	defer logger.Sync()

	// Service URL priority: --service flag > positional arg > environment.
	if cfg.ServiceURL == "" && len(args) > 0 {
		cfg.ServiceURL = args[0]
	}
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = viper.GetString("SERVICE_URL")
	}
	if cfg.ServiceURL == "" {
		return fmt.Errorf("OData service URL not provided. Use --service, a positional argument or ODATA_SERVICE_URL")
	}
	if cfg.Username == "" {
		cfg.Username = viper.GetString("USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = viper.GetString("PASSWORD")
	}
	if cfg.BearerToken == "" {
		cfg.BearerToken = viper.GetString("BEARER_TOKEN")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = viper.GetString("JWT_SECRET")
	}

	m := metrics.New()

	b, err := bridge.New(cfg, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	if modelFile != "" {
		model, err := loadModel(modelFile)
		if err != nil {
			return err
		}
		b.ApplyModel(model)
	}

	if cfg.PrintSummary {
		return printSummary(b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.Run(ctx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, m, logger)
	}

	handler := transport.Handler(b.Server().HandleMessage)

	var trans transport.Transport
	if cfg.UseHTTP() {
		var validator *auth.TokenValidator
		if cfg.HasCallerAuth() {
			validator = auth.NewTokenValidator([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
		}
		logger.Info("starting HTTP transport", zap.String("addr", cfg.HTTPAddr))
		trans = http.New(cfg.HTTPAddr, handler, validator, logger)
	} else {
		logger.Debug("using stdio transport")
		trans = stdio.New(handler, logger)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- trans.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP && modelFile != "" {
				model, err := loadModel(modelFile)
				if err != nil {
					logger.Warn("model reload failed", zap.Error(err))
					continue
				}
				b.SubmitModel(model)
				logger.Info("model reload queued", zap.String("file", modelFile))
				continue
			}
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
			trans.Close()
			return nil
		case err := <-errChan:
			return err
		}
	}
}

// loadModel reads an entity model snapshot from a JSON file.
func loadModel(path string) (*models.EntityModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var model models.EntityModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	if model.ParsedAt.IsZero() {
		model.ParsedAt = time.Now().UTC()
	}
	return &model, nil
}

// printSummary writes the catalog summary to stdout and exits cleanly.
func printSummary(b *bridge.Bridge) error {
	out, err := json.MarshalIndent(b.Summarize(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serveMetrics(addr string, m *metrics.Registry, logger *zap.Logger) {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := nethttp.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
