// Package domain contains the core types shared by the store, the conversion pipeline and the web layer.
package domain

import (
	"path"
	"strings"
	"time"
)

// ConvertedExt is the file extension of every converted item.
const ConvertedExt = ".webp"

// LocatorPrefix is the public URL prefix under which item files are served.
const LocatorPrefix = "/uploads/"

// Item is a stored, ranked picture.
type Item struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Locator     string    `json:"locator"`
	BlurHash    string    `json:"blur_hash,omitempty"`
	LikeCount   int64     `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsConverted reports whether the item already points at a WebP file.
// Legacy items uploaded before conversion existed keep their original extension.
func (i *Item) IsConverted() bool {
	return strings.EqualFold(path.Ext(i.ID), ConvertedExt)
}

// BaseID strips the extension from an item ID.
func BaseID(id string) string {
	return strings.TrimSuffix(id, path.Ext(id))
}

// LocatorFor returns the public locator for an item ID.
func LocatorFor(id string) string {
	return LocatorPrefix + id
}
