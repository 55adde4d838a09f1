package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Storage Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryStorage,
		Message:  "Database open failed",
		Detail:   "The SQLite database file could not be opened. Check the database path and directory permissions.",
	},
	"E101": {
		Category: CategoryStorage,
		Message:  "Schema migration failed",
		Detail:   "Applying the database schema failed. The database file may be corrupt or written by a newer version.",
	},
	"E102": {
		Category: CategoryStorage,
		Message:  "Record not found",
	},
	"E103": {
		Category: CategoryStorage,
		Message:  "Duplicate slug",
		Detail:   "Another post already uses this slug. Slugs must be unique across all posts.",
	},

	// ============================================
	// Media Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryMedia,
		Message:  "Media store unavailable",
		Detail:   "The configured media backend could not be reached.",
	},
	"E201": {
		Category: CategoryMedia,
		Message:  "Media object not found",
	},
	"E202": {
		Category: CategoryMedia,
		Message:  "Unsupported media type",
		Detail:   "Only image uploads are accepted.",
	},
	"E203": {
		Category: CategoryMedia,
		Message:  "Variant derivation failed",
		Detail:   "The stored bytes could not be decoded as an image, so no thumbnail could be produced.",
	},

	// ============================================
	// Render Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryRender,
		Message:  "Unknown content format",
		Detail:   "The post's format does not match any registered renderer.",
	},
	"E301": {
		Category: CategoryRender,
		Message:  "Content rendering failed",
	},

	// ============================================
	// Auth Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryAuth,
		Message:  "Invalid credentials",
	},
	"E401": {
		Category: CategoryAuth,
		Message:  "Session expired",
	},

	// ============================================
	// Config Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No inkpress.json was found in the working directory or any parent.",
	},
	"E501": {
		Category: CategoryConfig,
		Message:  "Config file invalid",
	},
	"E502": {
		Category: CategoryConfig,
		Message:  "Config validation failed",
	},

	// ============================================
	// Server Errors (E600-E699)
	// ============================================

	"E600": {
		Category: CategoryServer,
		Message:  "Server startup failed",
	},
}

// Register adds a custom error template. Intended for tests; production
// codes belong in the table above.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
