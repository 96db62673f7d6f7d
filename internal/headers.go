package internal

import "net/http"

// NoStoreCache marks responses as not cacheable. Pages carrying a session
// nonce must never be served from a cache.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
