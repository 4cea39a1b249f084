package middleware

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// VerifySignature authenticates inbound interactions against the
// application's ed25519 public key (hex-encoded, as handed out by the
// platform). Requests failing the check never reach the core.
func VerifySignature(hexKey string) func(http.Handler) http.Handler {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		panic("invalid interaction public key")
	}
	key := ed25519.PublicKey(raw)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !discordgo.VerifyInteraction(r, key) {
				writeJSONError(w, http.StatusUnauthorized, "invalid request signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
