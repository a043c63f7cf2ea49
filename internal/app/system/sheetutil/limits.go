// internal/app/system/sheetutil/limits.go
package sheetutil

// Row and decompression limits for spreadsheet processing.
const (
	MaxRows = 200000

	// maxUnzipSize bounds how much an .xlsx may expand to in memory.
	maxUnzipSize = 256 << 20 // 256 MB
)
