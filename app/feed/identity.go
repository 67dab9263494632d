package feed

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// BlogID derives the stable identifier for a blog from its configured
// source id. The same id always yields the same UUID across restarts,
// which is what makes blog upserts idempotent without a lookup table.
func BlogID(sourceID string) uuid.UUID {
	return deriveID(sourceID)
}

// PostID derives the stable identifier for a post from its blog's source
// id and the article link.
func PostID(sourceID, link string) uuid.UUID {
	return deriveID(sourceID + ":" + link)
}

// deriveID interprets the MD5 digest of key as the UUID bit pattern.
func deriveID(key string) uuid.UUID {
	sum := md5.Sum([]byte(key))
	id, _ := uuid.FromBytes(sum[:]) // md5.Size == 16, cannot fail
	return id
}
