// Package cli builds the recordbench command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimburion/recordbench/pkg/config"
	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/recordstore"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
	"github.com/nimburion/recordbench/pkg/version"
	"github.com/nimburion/recordbench/pkg/workload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes returned by ExitCode.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
)

// Options customizes the command tree. Zero values select the defaults.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Backend opens the record store the commands drive. Defaults to NewMongoBackend.
	Backend BackendFactory
}

type rootFlags struct {
	configPath          string
	envPrefix           string
	secretFilePath      string
	serviceNameOverride string
}

// NewRootCommand creates the CLI with load, run, healthcheck, config and version subcommands.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = config.DefaultServiceName
	}
	if opts.Description == "" {
		opts.Description = "MongoDB record-store benchmark driver"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.Backend == nil {
		opts.Backend = NewMongoBackend
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := &rootFlags{}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path (yaml, json, toml or properties)")
	rootCmd.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", opts.EnvPrefix, "prefix of the environment variables to read")
	rootCmd.PersistentFlags().StringVar(&flags.secretFilePath, "secret-file", "", "path to secrets file (sets <PREFIX>_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVar(&flags.serviceNameOverride, "service-name", "", "service name override")

	app := &app{opts: opts, flags: flags}
	rootCmd.AddCommand(
		newVersionCommand(opts.Name),
		app.newPhaseCommand(workload.PhaseLoad, "Insert the initial record set"),
		app.newPhaseCommand(workload.PhaseRun, "Run the operation mix against a loaded record set"),
		app.newHealthcheckCommand(),
		app.newConfigCommand(),
	)
	return rootCmd
}

// app carries what every subcommand needs after flag parsing.
type app struct {
	opts  Options
	flags *rootFlags
}

func (a *app) loader(flags *pflag.FlagSet) (*config.ViperLoader, error) {
	prefix := resolveEnvPrefix(a.flags.envPrefix)
	if err := applySecretFileFlag(prefix, a.flags.secretFilePath); err != nil {
		return nil, err
	}
	return config.NewViperLoader(a.flags.configPath, prefix).
		WithServiceNameDefault(a.opts.Name).
		WithFlags(flags), nil
}

// loadConfigAndLogger loads the effective configuration and builds the logger it describes.
func (a *app) loadConfigAndLogger(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	loader, err := a.loader(flags)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	logConfigIfDebug(log, cfg)
	return cfg, log, nil
}

func newVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	}
}

// ExitCode maps a command error to the process exit code: 2 for
// configuration problems, 1 for every other failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, mongostore.ErrInvalidConfig),
		errors.Is(err, recordstore.ErrConfiguration),
		errors.Is(err, workload.ErrInvalidConfig):
		return ExitConfiguration
	default:
		return ExitFailure
	}
}

// Execute runs cmd and reports the error on stderr. The caller decides how to exit.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return ExitCode(err)
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("%w: secret file %s is not accessible: %w", config.ErrInvalid, secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: secret file %s must not be a directory", config.ErrInvalid, secretFilePath)
	}
	return os.Setenv(envPrefix+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func logConfigIfDebug(log logger.Logger, cfg *config.Config) {
	if log == nil || cfg == nil {
		return
	}
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	redacted := *cfg
	redacted.MongoDB.URL = mongostore.RedactURL(cfg.MongoDB.URL)
	log.Debug("effective configuration", "config", fmt.Sprintf("%+v", redacted))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return config.DefaultEnvPrefix
	}
	return strings.ToUpper(trimmed)
}
