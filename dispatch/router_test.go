package dispatch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/fusiond/internal/logging"
)

func testEvent(taskName, serverAddr string, body []byte) Event {
	headers := http.Header{}
	if taskName != "" {
		headers.Set(HeaderTaskName, taskName)
	}
	if serverAddr != "" {
		headers.Set(HeaderServerAddress, serverAddr)
	}
	return Event{Method: http.MethodPost, Path: "/", Headers: headers, Body: body}
}

func TestDispatchInvokesTheNamedHandler(t *testing.T) {
	logging.ConfigureTests()
	var invokedA, invokedB bool
	router := NewRouter(map[string]Handler{
		"taskA": func(ctx *Context, event Event) (string, error) {
			invokedA = true
			return "from A", nil
		},
		"taskB": func(ctx *Context, event Event) (string, error) {
			invokedB = true
			return "from B", nil
		},
	})

	result, err := router.Dispatch(testEvent("taskA", "fusionizer.local:8000", []byte(`{}`)))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result != "from A" {
		t.Fatalf("unexpected result: %q", result)
	}
	if !invokedA || invokedB {
		t.Fatalf("wrong handler invoked: a=%v b=%v", invokedA, invokedB)
	}
}

func TestDispatchRejectsUnknownTask(t *testing.T) {
	logging.ConfigureTests()
	t.Setenv(EnvGroupName, "taskAtaskB")
	invoked := false
	router := NewRouter(map[string]Handler{
		"taskA": func(ctx *Context, event Event) (string, error) {
			invoked = true
			return "", nil
		},
	})

	_, err := router.Dispatch(testEvent("taskC", "fusionizer.local:8000", nil))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !strings.Contains(protoErr.Reason, "taskC") || !strings.Contains(protoErr.Reason, "taskAtaskB") {
		t.Fatalf("rejection must name the task and the owning group: %q", protoErr.Reason)
	}
	if invoked {
		t.Fatalf("rejected invocation must not execute task code")
	}
}

func TestDispatchRejectsMissingTaskHeader(t *testing.T) {
	logging.ConfigureTests()
	router := NewRouter(map[string]Handler{
		"taskA": func(ctx *Context, event Event) (string, error) { return "", nil },
	})

	_, err := router.Dispatch(testEvent("", "fusionizer.local:8000", nil))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !strings.Contains(protoErr.Reason, HeaderTaskName) {
		t.Fatalf("rejection must name the missing header: %q", protoErr.Reason)
	}
}

func TestDispatchMissingServerAddressIsConfigError(t *testing.T) {
	logging.ConfigureTests()
	invoked := false
	router := NewRouter(map[string]Handler{
		"taskA": func(ctx *Context, event Event) (string, error) {
			invoked = true
			return "", nil
		},
	})

	_, err := router.Dispatch(testEvent("taskA", "", nil))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError before any task code runs, got %v", err)
	}
	if invoked {
		t.Fatalf("configuration failure must surface before the handler runs")
	}
}

func TestInvocationHandlerStatusMapping(t *testing.T) {
	logging.ConfigureTests()
	router := NewRouter(map[string]Handler{
		"taskA": func(ctx *Context, event Event) (string, error) { return "ok", nil },
		"boom": func(ctx *Context, event Event) (string, error) {
			return "", errors.New("handler exploded")
		},
	})
	handler := InvocationHandler(router)

	cases := []struct {
		name   string
		task   string
		server string
		status int
	}{
		{"executed", "taskA", "fusionizer.local:8000", http.StatusOK},
		{"unknown task", "ghost", "fusionizer.local:8000", http.StatusBadRequest},
		{"missing server address", "taskA", "", http.StatusInternalServerError},
		{"handler failure", "boom", "fusionizer.local:8000", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		if tc.task != "" {
			req.Header.Set(HeaderTaskName, tc.task)
		}
		if tc.server != "" {
			req.Header.Set(HeaderServerAddress, tc.server)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: want status %d, got %d (%s)", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}
}
