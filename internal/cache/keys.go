package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key builds the deterministic cache fingerprint for an article/model
// pair. The model name is part of the identity: summaries are
// model-specific artifacts, so switching models invalidates the cache for
// that article.
func Key(articleID, modelName string) string {
	sum := sha256.Sum256([]byte(articleID + ":" + modelName))
	return hex.EncodeToString(sum[:])
}
