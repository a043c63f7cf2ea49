// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size for JSON API request bodies.
	MaxJSONBody = 64 << 10 // 64 KB

	// MaxProfileBody allows for long bio/about fields.
	MaxProfileBody = 256 << 10 // 256 KB

	// DefaultUploadBytes is the spreadsheet upload limit used when
	// upload_max_bytes is not configured.
	DefaultUploadBytes = 10 << 20 // 10 MB

	// MultipartMemory is how much of a multipart upload is held in memory
	// before spilling to temporary files.
	MultipartMemory = 8 << 20 // 8 MB
)
