package httpx

import (
	"context"
	"net/http"
	"time"
)

// contextWithTimeout bounds a handler's work to a deadline derived from the
// request context.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
