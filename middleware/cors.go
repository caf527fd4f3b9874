package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/cors"

	"github.com/bx-d/corerpc/dispatch"
)

// CORSConfig mirrors the fields of go-chi/cors.Options this system
// exposes; it is kept narrow rather than re-exporting cors.Options so a
// caller configuring YAML/env doesn't need the go-chi import.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig denies cross-origin requests until configured
// explicitly — no implicit wildcard origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		MaxAge:         86400,
	}
}

// CORS runs the dispatch.Context's request/response pair through
// go-chi/cors rather than reimplementing the preflight state machine: a
// synthetic *http.Request is built from ctx.Request and passed through
// cors.Handler wrapping a terminal handler that continues the chain; the
// CORS response headers it set are then copied onto ctx.Response. A
// preflight is answered by go-chi/cors alone, with its status code, and
// the rest of the chain does not run.
func CORS(cfg CORSConfig) dispatch.Middleware {
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(cfg.AllowedOrigins) == 0 {
		// go-chi/cors treats an empty origin list as "allow all".
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
	}
	handler := cors.Handler(opts)

	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			req := syntheticRequest(ctx)
			rec := httptest.NewRecorder()

			// go-chi/cors answers a preflight itself and never calls the
			// wrapped handler for it.
			preflighted := true
			handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				preflighted = false
				next(ctx)
			})).ServeHTTP(rec, req)

			for k, vs := range rec.Header() {
				for _, v := range vs {
					ctx.Response.Headers.Add(k, v)
				}
			}

			if preflighted {
				ctx.Response.Status = rec.Code
				ctx.MarkEncoded()
			}
		}
	}
}

func syntheticRequest(ctx *dispatch.Context) *http.Request {
	req := httptest.NewRequest(httpMethod(ctx), "/"+ctx.Request.Service+"/"+ctx.Request.Endpoint, nil)
	for k, vs := range ctx.Request.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req
}

func httpMethod(ctx *dispatch.Context) string {
	if m := ctx.Request.Headers.Get("X-Http-Method"); m != "" {
		return m
	}
	return http.MethodPost
}
