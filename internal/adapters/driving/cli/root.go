package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/core/ports/driving"
	"github.com/custodia-labs/idsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	configPath string
	verbose    bool
	logLevel   string
)

// annotationStandalone marks commands that run without services.
const annotationStandalone = "standalone"

// Services are the application services commands run against.
type Services struct {
	Engine     driving.SyncEngine
	Scheduler  driving.Scheduler
	Resources  driven.ResourceStore
	Tokens     driven.SyncTokenStore
	Executions driven.ExecutionStore

	// Close releases storage and connectors. May be nil.
	Close func() error
}

// BootstrapFunc builds the services from a config file path. An empty
// path selects the default location.
type BootstrapFunc func(configPath string) (*Services, error)

// InitConfigFunc writes a default config file and returns its path.
type InitConfigFunc func(configPath string, force bool) (string, error)

var (
	bootstrap  BootstrapFunc
	initConfig InitConfigFunc

	// services is set by bootstrap, or directly by tests.
	services      *Services
	ownsServices  bool
	errNoServices = errors.New("services not configured")
)

// SetBootstrap sets the function that wires services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetInitConfig sets the function backing the init command.
func SetInitConfig(fn InitConfigFunc) {
	initConfig = fn
}

// SetVersion sets the reported version.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "idsync",
	Short: "Synchronise identities from external resources",
	Long: `idsync pulls account changes from external systems of record, matches
them to local identities and applies creates, updates and deletes.

Changes are read incrementally from each resource's change stream, or in
full when reconciling. Confirmed changes are propagated to the resources
listed as defaults for new identities.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.idsync/idsync.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log threshold: debug, info, warn or error")
}

// Execute runs the root command and releases any services it started.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := teardownServices(); err == nil {
		err = cerr
	}
	return err
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logLevel != "" && !verbose {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	if cmd.Annotations[annotationStandalone] == "true" || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errNoServices
	}
	s, err := bootstrap(configPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	services = s
	ownsServices = true
	return nil
}

func teardownServices() error {
	if !ownsServices || services == nil {
		return nil
	}
	s := services
	services = nil
	ownsServices = false
	if s.Close != nil {
		return s.Close()
	}
	return nil
}

// requireServices returns the services or an error naming what is missing.
func requireServices() (*Services, error) {
	if services == nil || services.Engine == nil {
		return nil, errNoServices
	}
	return services, nil
}
