package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitValidationError = 2
	ExitLookupError     = 3
	ExitRenderError     = 4
)

// CommandError carries the exit code of a failed command.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Root Command
// =============================================================================

// app is the state shared by every command once configuration is loaded.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	cfg    *Config
	logger *slog.Logger
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "gitlabstack",
		Short: "Plan and render a self-hosted GitLab deployment on EC2",
		Long: "gitlabstack turns a deployment configuration (environment, .env file or config file)\n" +
			"into a resource plan and a CloudFormation template for a single GitLab instance.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to .env file (ignored if missing)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text|json)")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(a.configPath, a.envFile)
		if err != nil {
			return &CommandError{Op: "load config", Err: err, ExitCode: ExitConfigError}
		}
		// flags override config
		if a.logLevel != "" {
			cfg.Log.Level = a.logLevel
		}
		if a.logFormat != "" {
			cfg.Log.Format = a.logFormat
		}
		a.cfg = cfg
		a.logger = SetupLogger(cfg, stderr)
		a.logger.Debug("configuration loaded",
			"version", Version,
			"config", a.configPath,
			"region", cfg.AWS.Region,
		)
		return nil
	}

	cmd.AddCommand(
		newCmdVersion(),
		newCmdValidate(a),
		newCmdPlan(a),
		newCmdSynth(a),
		newCmdPreflight(a),
		newCmdVerifyDNS(a),
		newCmdWait(a),
	)
	return cmd
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var cErr *CommandError
		if errors.As(err, &cErr) {
			return cErr.ExitCode
		}
		return ExitConfigError
	}
	return ExitSuccess
}
