package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/labrig/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringSliceFlag collects repeated occurrences of a flag in order.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("labrig", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
labrig - a declarative provisioner for ML research workspaces.

Usage:
  labrig [options] [RIG_PATH]

Arguments:
  RIG_PATH
    Path to a single .hcl rig file or a directory containing .hcl files.
    Without it the builtin rig runs, provisioning the full perception
    workspace (detection weights, tracker repositories, CARLA).

Step kinds:
  make_dir, fetch_file, extract_archive, install_package, clone_repo,
  move_file, drive_fetch, run_script, s3_fetch

Options:
`)
		flagSet.PrintDefaults()
	}

	rigFlag := flagSet.String("rig", "", "Path to the rig file or directory.")
	workspaceFlag := flagSet.String("workspace", "", "Workspace root, overriding the rig's workspace block.")
	var varFlags stringSliceFlag
	flagSet.Var(&varFlags, "var", "Set a rig variable as name=value. Repeatable.")
	var varFileFlags stringSliceFlag
	flagSet.Var(&varFileFlags, "var-file", "Load rig variables from a YAML file. Repeatable.")
	dryRunFlag := flagSet.Bool("dry-run", false, "List the planned steps without executing them.")
	retriesFlag := flagSet.Int("retries", 0, "Extra attempts for failed fetch steps. 0 keeps single-attempt semantics.")
	reportFlag := flagSet.String("report", "", "Write a YAML run report to this path.")
	overwriteFlag := flagSet.Bool("overwrite", false, "Re-download artifacts that already exist.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "too many arguments: expected at most one rig path"}
	}

	path := *rigFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Rig path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		RigPath:    path,
		Workspace:  *workspaceFlag,
		Vars:       varFlags,
		VarFiles:   varFileFlags,
		DryRun:     *dryRunFlag,
		Overwrite:  *overwriteFlag,
		Retries:    *retriesFlag,
		Report:     *reportFlag,
		StatusPort: *statusPortFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
