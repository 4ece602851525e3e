package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"

	pkgerrors "github.com/pkg/errors"
)

// CLIErrorHandler turns pipeline errors into user-facing messages and exit
// codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints the error and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}
	h.logger.WithError(err).Error("Command failed")

	var re *apperrors.ReconcilerError
	if pkgerrors.As(err, &re) {
		return h.handleReconcilerError(re)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *CLIErrorHandler) handleReconcilerError(err *apperrors.ReconcilerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}
	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}
	return err.GetExitCode()
}

func categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryConfiguration:
		return "Check the command flags and config file. Run with --help for flag documentation."
	case apperrors.CategoryBaseline:
		return "Check the baseline workbook directory passed with --baseline."
	case apperrors.CategoryParse:
		return "Check the channel export file format. Run with --verbose for parser details."
	case apperrors.CategoryRecord:
		return "A channel export produced an unusable record. Run with --verbose for details."
	case apperrors.CategoryReport:
		return "Check the report destination path and its permissions."
	default:
		return "Run with --verbose for more detail."
	}
}
