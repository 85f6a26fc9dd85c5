package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	Exit     int
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Environment Errors (D100-D199)
	// ============================================

	"D101": {
		Category: CategoryEnvironment,
		Message:  "No SHA-256 digest utility available",
		Detail:   "Checksum generation needs sha256sum (coreutils) or shasum (Perl) on PATH.",
		Exit:     ExitUnavailable,
	},
	"D102": {
		Category: CategoryEnvironment,
		Message:  "Go toolchain not found",
		Detail:   "The default go command is not on PATH.",
	},

	// ============================================
	// Network Errors (D200-D299)
	// ============================================

	"D201": {
		Category: CategoryNetwork,
		Message:  "Failed to resolve latest Go version",
		Detail:   "The release endpoint could not be reached or returned an unexpected body.",
	},

	// ============================================
	// Toolchain Errors (D300-D399)
	// ============================================

	"D301": {
		Category: CategoryToolchain,
		Message:  "Compilation failed",
	},
	"D302": {
		Category: CategoryToolchain,
		Message:  "Toolchain install failed",
		Detail:   "Installing the requested Go version with golang.org/dl failed.",
	},
	"D303": {
		Category: CategoryToolchain,
		Message:  "Toolchain query failed",
	},
	"D304": {
		Category: CategoryToolchain,
		Message:  "Digest utility failed",
	},

	// ============================================
	// VCS Errors (D400-D499)
	// ============================================

	"D401": {
		Category: CategoryVCS,
		Message:  "No version tag available",
		Detail:   "Source control did not describe a matching tag.",
	},

	// ============================================
	// CLI Errors (D500-D599)
	// ============================================

	"D501": {
		Category: CategoryCLI,
		Message:  "Unknown command",
		Exit:     ExitFailure,
	},
	"D502": {
		Category: CategoryCLI,
		Message:  "Checksum verification failed",
		Exit:     ExitFailure,
	},
	"D503": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Exit:     ExitFailure,
	},

	// ============================================
	// Config Errors (D600-D699)
	// ============================================

	"D601": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"D602": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"D603": {
		Category: CategoryConfig,
		Message:  "Publishing is not configured",
		Detail:   "No publish.bucket is set in distkit.json.",
	},

	// ============================================
	// IO Errors (D700-D799)
	// ============================================

	"D701": {
		Category: CategoryIO,
		Message:  "Failed to prepare build directory",
	},
	"D702": {
		Category: CategoryIO,
		Message:  "Failed to write artifacts manifest",
	},
	"D703": {
		Category: CategoryIO,
		Message:  "Failed to read artifacts manifest",
	},
	"D704": {
		Category: CategoryIO,
		Message:  "Failed to write checksum file",
	},
	"D705": {
		Category: CategoryIO,
		Message:  "Upload failed",
	},
	"D706": {
		Category: CategoryIO,
		Message:  "Failed to open log file",
	},
	"D707": {
		Category: CategoryIO,
		Message:  "Mirror server failed",
	},
	"D708": {
		Category: CategoryIO,
		Message:  "File watcher failed",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
