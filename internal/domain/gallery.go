package domain

import "context"

// GalleryStore saves completed files into device-managed media storage.
// Failures here are expected on some platforms and are never fatal; the item
// simply keeps its local copy.
type GalleryStore interface {
	// SaveToAlbum copies srcPath into the named album under the given file
	// name. Saving a name that already exists in the album is a success and
	// must not create a duplicate entry.
	SaveToAlbum(ctx context.Context, srcPath, album, name string) error
}
