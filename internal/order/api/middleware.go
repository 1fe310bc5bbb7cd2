package api

import (
	"net/http"

	"ms-orderflow/internal/models"
)

// ActorMiddleware lifts the principal forwarded by the API gateway into
// the request context. Requests without the headers run as the system
// actor.
func ActorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Actor-Id"); id != "" {
				actor := models.Actor{ID: id, Role: r.Header.Get("X-Actor-Role")}
				if actor.Role == "" {
					actor.Role = "customer"
				}
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
