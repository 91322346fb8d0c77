package api

// API limits and constants.
const (
	// MaxUploadSize is the default limit for picture uploads (10 MB).
	MaxUploadSize = 10 << 20

	// DefaultPictureLimit is used when GET /api/pictures has no limit.
	DefaultPictureLimit = 30

	// uploadField is the multipart field carrying the picture.
	uploadField = "picture"
)

// Cache-Control header values.
const (
	// Converted files are immutable per ID: a re-conversion writes a new ID.
	CacheOneWeek = "public, max-age=604800"
	CacheNoStore = "no-cache"
)
