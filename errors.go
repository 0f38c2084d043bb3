package notesite

import "errors"

// Sentinel errors for site builds.
var (
	ErrInputNotFound    = errors.New("input directory not found")
	ErrInputNotDir      = errors.New("input path is not a directory")
	ErrOutputInInput    = errors.New("output directory cannot be the input directory")
	ErrReadNote         = errors.New("failed to read note")
	ErrWritePage        = errors.New("failed to write page")
	ErrCopyAsset        = errors.New("failed to copy asset")
	ErrPageFailed       = errors.New("one or more pages failed to build")
	ErrInvalidAssetPath = errors.New("invalid asset path")
	ErrInvalidTOCDepth  = errors.New("invalid TOC depth")

	// PDF export errors.
	ErrPDFGeneration   = errors.New("PDF generation failed")
	ErrBrowserConnect  = errors.New("failed to connect to browser")
	ErrPageCreate      = errors.New("failed to create browser page")
	ErrPageLoad        = errors.New("failed to load page")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidMargin   = errors.New("invalid margin")
)
