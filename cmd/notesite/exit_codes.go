package main

import (
	"errors"
	"os"

	notesite "github.com/alnah/go-notesite"
	"github.com/alnah/go-notesite/internal/assets"
	"github.com/alnah/go-notesite/internal/config"
	"github.com/alnah/go-notesite/internal/dateutil"
	"github.com/alnah/go-notesite/internal/server"
	"github.com/alnah/go-notesite/internal/typst"
)

// Exit codes for the notesite CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess     = 0 // Successful build
	ExitGeneral     = 1 // General/unexpected error, failed pages
	ExitUsage       = 2 // Invalid flags, config, or validation
	ExitIO          = 3 // File not found, permission denied, missing typst
	ExitBrowser     = 4 // Browser/Chrome errors
	ExitDiagnostics = 5 // Formula errors with --strict
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, ErrDiagnostics) {
		return ExitDiagnostics
	}

	// Browser errors (exit 4)
	if errors.Is(err, notesite.ErrBrowserConnect) ||
		errors.Is(err, notesite.ErrPageCreate) ||
		errors.Is(err, notesite.ErrPageLoad) ||
		errors.Is(err, notesite.ErrPDFGeneration) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, notesite.ErrInputNotFound) ||
		errors.Is(err, notesite.ErrInputNotDir) ||
		errors.Is(err, notesite.ErrReadNote) ||
		errors.Is(err, notesite.ErrWritePage) ||
		errors.Is(err, notesite.ErrCopyAsset) ||
		errors.Is(err, typst.ErrCompilerNotFound) ||
		errors.Is(err, server.ErrRootNotFound) ||
		errors.Is(err, server.ErrListen) ||
		errors.Is(err, server.ErrWatch) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, notesite.ErrOutputInInput) ||
		errors.Is(err, notesite.ErrInvalidPageSize) ||
		errors.Is(err, notesite.ErrInvalidMargin) ||
		errors.Is(err, notesite.ErrInvalidTOCDepth) ||
		errors.Is(err, notesite.ErrInvalidAssetPath) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrLayoutNotFound) ||
		errors.Is(err, dateutil.ErrInvalidDateFormat) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrUnsupportedShell) {
		return ExitUsage
	}

	return ExitGeneral
}
