package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://github.com/royals-league/rally/blob/main/docs/errors.md#"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (R001-R099)
	// ============================================

	"R001": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No rally.json was found in this directory or any parent directory.",
		DocURL:   docBase + "r001",
	},
	"R002": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "rally.json could not be parsed as JSON.",
		DocURL:   docBase + "r002",
	},
	"R003": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is out of range or malformed.",
		DocURL:   docBase + "r003",
	},
	"R004": {
		Category: CategoryConfig,
		Message:  "Missing page URL",
		Detail:   "The league page URL is required to discover endpoints and seed controls.",
		DocURL:   docBase + "r004",
	},
	"R005": {
		Category: CategoryConfig,
		Message:  "Unknown overlap policy",
		Detail:   "The policy must be \"drop\" or \"supersede\".",
		DocURL:   docBase + "r005",
	},

	// ============================================
	// Commit Errors (R101-R199)
	// ============================================

	"R101": {
		Category: CategoryCommit,
		Message:  "Missing endpoint",
		Detail:   "The page does not configure the endpoint for this control. No request was sent.",
		DocURL:   docBase + "r101",
	},
	"R102": {
		Category: CategoryCommit,
		Message:  "Rejected by server",
		Detail:   "The backend refused the change.",
		DocURL:   docBase + "r102",
	},
	"R103": {
		Category: CategoryCommit,
		Message:  "Session expired",
		Detail:   "The backend redirected the request, usually to the login page.",
		DocURL:   docBase + "r103",
	},
	"R104": {
		Category: CategoryCommit,
		Message:  "Too many requests",
		Detail:   "The backend rate limited this client.",
		DocURL:   docBase + "r104",
	},
	"R105": {
		Category: CategoryCommit,
		Message:  "Network error",
		Detail:   "The request did not reach the backend or no response arrived.",
		DocURL:   docBase + "r105",
	},
	"R106": {
		Category: CategoryCommit,
		Message:  "Request timed out",
		Detail:   "The backend did not answer within the configured timeout.",
		DocURL:   docBase + "r106",
	},

	// ============================================
	// Session Errors (R201-R299)
	// ============================================

	"R201": {
		Category: CategoryProtocol,
		Message:  "Page fetch failed",
		Detail:   "The league page could not be loaded.",
		DocURL:   docBase + "r201",
	},
	"R202": {
		Category: CategoryProtocol,
		Message:  "Control not found",
		Detail:   "The page has no control matching the given identifiers.",
		DocURL:   docBase + "r202",
	},

	// ============================================
	// CLI Errors (R301-R399)
	// ============================================

	"R301": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with missing or malformed arguments.",
		DocURL:   docBase + "r301",
	},
	"R302": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The live server stopped with an error.",
		DocURL:   docBase + "r302",
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
