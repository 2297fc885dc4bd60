package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Request limits
const (
	// MaxRequestBodySize is the maximum accepted JSON request body in bytes (1MB)
	MaxRequestBodySize = 1 << 20

	// MaxSearchResults caps the records returned by a directory search
	MaxSearchResults = 500
)
