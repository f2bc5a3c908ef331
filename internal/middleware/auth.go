package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"beacon/internal/common"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
	apiKeyIDKey  = "apiKeyID"
)

type apiKey struct {
	digest [sha256.Size]byte
	id     string
}

// Auth accepts a key from X-API-Key or an "Authorization: Bearer" header.
// Keys are compared as SHA-256 digests so the comparison time does not depend
// on key length. The accepted key's short fingerprint is stored for the request
// log; the key itself never is. With no keys configured every request is rejected.
func Auth(validKeys []string) gin.HandlerFunc {
	keys := make([]apiKey, 0, len(validKeys))
	for _, k := range validKeys {
		digest := sha256.Sum256([]byte(k))
		keys = append(keys, apiKey{digest: digest, id: hex.EncodeToString(digest[:4])})
	}

	return func(c *gin.Context) {
		presented := presentedKey(c)
		if presented == "" {
			common.HandleError(c, common.NewUnauthorizedError("missing API key"))
			c.Abort()
			return
		}

		id, ok := matchKey(presented, keys)
		if !ok {
			common.HandleError(c, common.NewUnauthorizedError("invalid API key"))
			c.Abort()
			return
		}

		c.Set(apiKeyIDKey, id)
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader(apiKeyHeader)); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// matchKey checks every key so the time taken does not reveal which one matched.
func matchKey(presented string, keys []apiKey) (string, bool) {
	digest := sha256.Sum256([]byte(presented))
	var id string
	for _, k := range keys {
		if subtle.ConstantTimeCompare(digest[:], k.digest[:]) == 1 {
			id = k.id
		}
	}
	return id, id != ""
}
