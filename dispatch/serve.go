package dispatch

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// EnvListenAddr overrides the dispatch runtime listen address.
const EnvListenAddr = "FUSIOND_HANDLER_ADDR"

const defaultListenAddr = ":8080"

// Run serves the routing table on the configured listen address. Generated
// artifact entry points call this.
func Run(tasks map[string]Handler) error {
	addr := os.Getenv(EnvListenAddr)
	if addr == "" {
		addr = defaultListenAddr
	}
	return Serve(addr, tasks)
}

// Serve exposes the router over HTTP. Invocations are routed by header, not
// by path; protocol failures become 4xx responses and handler failures 5xx,
// never a crashed process.
func Serve(addr string, tasks map[string]Handler) error {
	router := NewRouter(tasks)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", InvocationHandler(router))
	log.Info().Str("addr", addr).Msg("dispatch runtime listening")
	return (&http.Server{Addr: addr, Handler: mux}).ListenAndServe()
}

// InvocationHandler adapts the router to net/http.
func InvocationHandler(router *Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body []byte
		if req.Body != nil {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				http.Error(w, "failed to read invocation body", http.StatusBadRequest)
				return
			}
			body = b
		}
		result, err := router.Dispatch(Event{
			Method:  req.Method,
			Path:    req.URL.Path,
			Headers: req.Header,
			Body:    body,
		})
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		_, _ = io.WriteString(w, result)
	})
}

func statusFor(err error) int {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
