package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/config"
	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/infrastructure"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts"
)

// Exit codes
const (
	exitOK       = 0
	exitError    = 1
	exitNotValid = 2
)

// exitCodeError carries a specific process exit code out of a command
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

var errReportNotOK = &exitCodeError{code: exitNotValid, msg: "validation failed: report contains failing checks"}

// cli holds the state shared by the subcommands once the root pre-run has
// resolved configuration
type cli struct {
	configFile string
	rulesFile  string
	logLevel   string

	cfg     *config.Config
	logger  *slog.Logger
	service *services.ValidationService
	files   *validation.FileValidator
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "trinity-validate",
		Short: "Validate category forecasting, promo intensity and MMM inputs",
		Long: `trinity-validate runs the validation pipelines used by the Trinity service
against local files, SQL query results or MongoDB collections.

Inputs are named with key=value pairs. The keys a pipeline needs are listed by
the pipelines command.`,
		Version:           contracts.GetVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (default $TRINITY_CONFIG or "+config.DefaultConfigFile+")")
	root.PersistentFlags().StringVar(&c.rulesFile, "rules", "", "rules override file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(c),
		newSQLCmd(c),
		newMongoCmd(c),
		newScheduleCmd(c),
		newPipelinesCmd(c),
	)
	return root
}

// setup loads configuration and builds the validation service
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFile(c.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return apierrors.NewConfigError("failed to load configuration", err)
	}
	if c.rulesFile != "" {
		cfg.Rules.File = c.rulesFile
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	rules, err := validation.LoadRules(cfg.Rules.File)
	if err != nil {
		return apierrors.NewConfigError("failed to load rules", err).WithContext("file", cfg.Rules.File)
	}

	c.cfg = cfg
	c.logger = logger
	c.service = services.NewValidationService(validation.NewDispatcher(validation.WithRules(rules)), nil, nil, nil, logger)
	c.files = validation.NewFileValidator(logger, cfg.Upload.MaxFileSize, cfg.Upload.AllowedExtensions...)
	return nil
}

// execute runs root with args and maps the outcome to a process exit code
func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)

	var exit *exitCodeError
	if errors.As(err, &exit) {
		return exit.code
	}
	return exitError
}

// parseAssignments splits repeated key=value flag values. Keys must be unique.
func parseAssignments(flag string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("at least one --%s key=value is required", flag)
	}

	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("invalid --%s %q: expected key=value", flag, v)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate --%s key %q", flag, key)
		}
		out[key] = value
	}
	return out, nil
}
