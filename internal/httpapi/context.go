package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is a process-level context canceled on shutdown, so
// draining streams do not outlive the listener. Defaults to Background.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// requestContext derives a handler context from the request, additionally
// canceled when the server shuts down. Request-scoped values (request id)
// stay visible. The cancel func must be called when the handler returns.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(serverBaseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
