package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Lifecycle Errors (W100-W149)
	// ============================================

	"W101": {
		Category: CategoryLifecycle,
		Message:  "Controller cannot be activated from its current state",
		Detail:   "Activation is only valid from the none or deactivated state.",
		DocURL:   "https://weft.dev/docs/errors/W101",
	},
	"W102": {
		Category: CategoryLifecycle,
		Message:  "Controller cannot be deactivated from its current state",
		Detail:   "Deactivation is only valid from the activated or activating state.",
		DocURL:   "https://weft.dev/docs/errors/W102",
	},
	"W103": {
		Category: CategoryLifecycle,
		Message:  "Invalid controller state transition",
		Detail:   "The lifecycle driver attempted a transition that is not in the transition table.",
		DocURL:   "https://weft.dev/docs/errors/W103",
	},
	"W104": {
		Category: CategoryLifecycle,
		Message:  "Controller is disposed",
		Detail:   "A disposed controller can never be activated or disposed again.",
		DocURL:   "https://weft.dev/docs/errors/W104",
	},
	"W105": {
		Category: CategoryLifecycle,
		Message:  "Controller cannot be disposed while active",
		Detail:   "Deactivate the controller before disposing it.",
		DocURL:   "https://weft.dev/docs/errors/W105",
	},

	// ============================================
	// Runtime Errors (W150-W199)
	// ============================================

	"W150": {
		Category: CategoryRuntime,
		Message:  "Deferred target write failed",
		Detail:   "A scheduled write to a render target returned an error.",
		DocURL:   "https://weft.dev/docs/errors/W150",
	},

	// ============================================
	// Config Errors (W200-W299)
	// ============================================

	"W201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   "https://weft.dev/docs/errors/W201",
	},
	"W202": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
		DocURL:   "https://weft.dev/docs/errors/W202",
	},

	// ============================================
	// CLI Errors (W300-W399)
	// ============================================

	"W301": {
		Category: CategoryCLI,
		Message:  "Invalid template data",
		Detail:   "The data file must contain a JSON object.",
		DocURL:   "https://weft.dev/docs/errors/W301",
	},
	"W302": {
		Category: CategoryCLI,
		Message:  "Snapshot upload failed",
		Detail:   "The rendered output could not be stored.",
		DocURL:   "https://weft.dev/docs/errors/W302",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
