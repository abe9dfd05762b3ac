package dispatch

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Interceptor is an http.RoundTripper composed in front of the real
// transport. Outbound calls addressed to a co-located task are resolved
// in-process; everything else is delegated unmodified.
//
// A call is resolved locally iff it is a POST, its destination matches this
// artifact's own server address, its path is exactly one segment, and that
// segment names a task in the routing table. Recursive co-located calls are
// not cycle-detected.
type Interceptor struct {
	Base       http.RoundTripper
	ServerAddr string
	Tasks      map[string]Handler
	Ctx        *Context
}

func (ic *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	taskName, ok := ic.localTask(req)
	if !ok {
		return ic.base().RoundTrip(req)
	}

	body, err := readRequestBody(req)
	if err != nil {
		return nil, err
	}
	// The body must decode as the task's JSON input; a malformed body yields
	// a client-error response rather than a decode failure in task code.
	var kwargs map[string]any
	if err := json.Unmarshal(body, &kwargs); err != nil {
		ic.Ctx.Logger.Warn().
			Str("task", taskName).
			Msg("local invocation body is not valid JSON")
		return syntheticResponse(req, http.StatusBadRequest, []byte("Invalid JSON format")), nil
	}

	ic.Ctx.Logger.Debug().
		Str("task", taskName).
		Msg("resolving co-located task call in-process")
	result, err := ic.Tasks[taskName](ic.Ctx, Event{
		Method:  req.Method,
		Path:    "/" + taskName,
		Headers: req.Header,
		Body:    body,
	})
	if err != nil {
		return syntheticResponse(req, http.StatusInternalServerError, []byte(err.Error())), nil
	}
	return syntheticResponse(req, http.StatusOK, []byte(result)), nil
}

// localTask decides whether the request targets a task inside this artifact.
func (ic *Interceptor) localTask(req *http.Request) (string, bool) {
	if req.Method != http.MethodPost || req.URL == nil {
		return "", false
	}
	self := trimScheme(strings.TrimSuffix(ic.ServerAddr, "/"))
	if self == "" {
		return "", false
	}
	target := req.URL.Host + req.URL.Path
	if !strings.HasPrefix(target, self) {
		return "", false
	}
	segment := strings.Trim(req.URL.Path, "/")
	if segment == "" || strings.Contains(segment, "/") {
		return "", false
	}
	if _, ok := ic.Tasks[segment]; !ok {
		return "", false
	}
	return segment, true
}

func (ic *Interceptor) base() http.RoundTripper {
	if ic.Base != nil {
		return ic.Base
	}
	return http.DefaultTransport
}

func trimScheme(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	return strings.TrimPrefix(addr, "https://")
}

func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// syntheticResponse fabricates an http.Response without any network hop.
func syntheticResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
