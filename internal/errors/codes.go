// Package errors provides structured error handling for law-search.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Acquisition errors (network, source files)
//   - 3XX: Structural errors (XML shape)
//   - 4XX: Embedding errors
//   - 5XX: Storage errors
//   - 6XX: Validation failures
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryAcquisition indicates network or source-file errors while
	// fetching statute XML. Recoverable by retry or skip.
	CategoryAcquisition Category = "ACQUISITION"
	// CategoryStructure indicates malformed or unrecognized document shape.
	// Not retryable without a different source.
	CategoryStructure Category = "STRUCTURE"
	// CategoryEmbedding indicates embedding model unavailable or generation
	// failure. Recoverable if the model can be reinitialized.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStorage indicates database connection or query failure.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates a post-hoc checklist failure. Blocks
	// "ready" status but does not corrupt data.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but processing can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Acquisition errors (200-299)
	ErrCodeDownloadFailed = "ERR_201_DOWNLOAD_FAILED"
	ErrCodeFileNotFound   = "ERR_202_FILE_NOT_FOUND"
	ErrCodeFileInvalid    = "ERR_203_FILE_INVALID"

	// Structural errors (300-399)
	ErrCodeXMLMalformed = "ERR_301_XML_MALFORMED"
	ErrCodeXMLStructure = "ERR_302_XML_STRUCTURE"

	// Embedding errors (400-499)
	ErrCodeModelUnavailable  = "ERR_401_MODEL_UNAVAILABLE"
	ErrCodeEmbedFailed       = "ERR_402_EMBED_FAILED"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Storage errors (500-599)
	ErrCodeStorageConnect = "ERR_501_STORAGE_CONNECT"
	ErrCodeStorageQuery   = "ERR_502_STORAGE_QUERY"
	ErrCodeStorageInsert  = "ERR_503_STORAGE_INSERT"

	// Validation failures (600-699)
	ErrCodeValidationFailed = "ERR_601_VALIDATION_FAILED"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode derives the category from a code's number range.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryAcquisition
	case '3':
		return CategoryStructure
	case '4':
		return CategoryEmbedding
	case '5':
		return CategoryStorage
	case '6':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity. Validation failures are warnings,
// config errors abort the run, everything else is a recoverable error.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryValidation:
		return SeverityWarning
	case CategoryConfig:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// retryableCodes are codes representing transient conditions.
var retryableCodes = map[string]bool{
	ErrCodeDownloadFailed:   true,
	ErrCodeModelUnavailable: true,
	ErrCodeEmbedFailed:      true,
	ErrCodeStorageConnect:   true,
}

func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
