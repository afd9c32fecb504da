package storage

import (
	"path"

	"github.com/google/uuid"
)

const profileImagePrefix = "profile-images"

// ProfileImageKey returns a fresh object key for a subject's profile image.
// Every upload gets a new key so cached URLs of the previous image stay valid
// until they expire.
func ProfileImageKey(sub string) string {
	return path.Join(profileImagePrefix, sub, uuid.NewString())
}
