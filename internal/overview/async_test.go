package overview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

func (a *recordingAlerter) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

// scriptedTransport replays a fixed sequence of state changes.
type scriptedTransport struct {
	steps []scriptedStep
	err   error
}

type scriptedStep struct {
	state ReadyState
	resp  Response
}

func (s scriptedTransport) Get(_ context.Context, _ string, onChange StateFunc) error {
	for _, step := range s.steps {
		onChange(step.state, step.resp)
	}
	return s.err
}

func wait(t *testing.T, req *Request) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return req.Wait(ctx)
}

func TestAsyncGet_Success(t *testing.T) {
	t.Parallel()
	doc := NewMemoryDocument()
	el := doc.Add("bugs", NewMemoryElement(DisplayInline, "bugs:"))

	var seen []string
	transport := scriptedTransport{steps: []scriptedStep{
		{StateOpened, Response{}},
		{StateHeadersReceived, Response{Status: 200}},
		{StateLoading, Response{Status: 200}},
		{StateLoading, Response{Status: 200}},
		{StateDone, Response{Status: 200, StatusText: "OK", Body: "<b>3 bugs</b>"}},
	}}
	page := &Page{Doc: doc, Transport: stateSpy{transport, el, &seen}}

	req, err := AsyncGet(context.Background(), page, "bugs", "/bugs/libfoo-perl")
	require.NoError(t, err)
	require.NoError(t, wait(t, req))

	assert.Equal(t, []string{
		"bugs:<br/>Loading...",
		"bugs:<br/>Loading...",
		"bugs:<br/>Loading....",
		"bugs:<br/>Loading.....",
		"<b>3 bugs</b>",
	}, seen)
	assert.Equal(t, "<b>3 bugs</b>", el.InnerHTML())
}

// stateSpy records the element content after each state change.
type stateSpy struct {
	inner Transport
	el    Element
	seen  *[]string
}

func (s stateSpy) Get(ctx context.Context, url string, onChange StateFunc) error {
	return s.inner.Get(ctx, url, func(state ReadyState, resp Response) {
		onChange(state, resp)
		*s.seen = append(*s.seen, s.el.InnerHTML())
	})
}

func TestAsyncGet_FailureStatus(t *testing.T) {
	t.Parallel()
	doc := NewMemoryDocument()
	el := doc.Add("x", NewMemoryElement("", ""))
	page := &Page{Doc: doc, Transport: scriptedTransport{steps: []scriptedStep{
		{StateOpened, Response{}},
		{StateDone, Response{Status: 500, StatusText: "Internal Server Error"}},
	}}}

	req, err := AsyncGet(context.Background(), page, "x", "/x")
	require.NoError(t, err)
	require.NoError(t, wait(t, req))
	assert.Equal(t, "500: Internal Server Error", el.InnerHTML())
}

func TestAsyncGet_NoTransport(t *testing.T) {
	t.Parallel()
	alerts := &recordingAlerter{}
	page := &Page{Doc: NewMemoryDocument(), Alerter: alerts}

	req, err := AsyncGet(context.Background(), page, "x", "/x")
	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrNoTransport)
	assert.Equal(t, []string{"Your browser lacks the needed ability to use Ajax. Sorry."}, alerts.all())
}

func TestAsyncGet_MissingElementAlertsPerStateChange(t *testing.T) {
	t.Parallel()
	alerts := &recordingAlerter{}
	page := &Page{
		Doc:     NewMemoryDocument(),
		Alerter: alerts,
		Transport: scriptedTransport{steps: []scriptedStep{
			{StateOpened, Response{}},
			{StateDone, Response{Status: 200, Body: "x"}},
		}},
	}

	req, err := AsyncGet(context.Background(), page, "gone", "/x")
	require.NoError(t, err)
	require.NoError(t, wait(t, req))
	assert.Equal(t, []string{`Element "gone" not found`, `Element "gone" not found`}, alerts.all())
}

func TestAsyncGet_TransportError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	doc := NewMemoryDocument()
	doc.Add("x", NewMemoryElement("", ""))
	page := &Page{Doc: doc, Transport: scriptedTransport{err: boom}}

	req, err := AsyncGet(context.Background(), page, "x", "/x")
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, req), boom)
}

func TestAsyncGet_HTTP(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/overview/libfoo-perl":
			_, _ = w.Write([]byte("<tr><td>libfoo-perl</td></tr>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	doc := NewMemoryDocument()
	found := doc.Add("found", NewMemoryElement(DisplayInline, ""))
	missing := doc.Add("missing", NewMemoryElement(DisplayInline, ""))
	page := &Page{Doc: doc, Transport: &HTTPTransport{Client: server.Client()}}

	ctx := context.Background()
	r1, err := AsyncGet(ctx, page, "found", server.URL+"/overview/libfoo-perl")
	require.NoError(t, err)
	r2, err := AsyncGet(ctx, page, "missing", server.URL+"/overview/nothing")
	require.NoError(t, err)

	require.NoError(t, wait(t, r1))
	require.NoError(t, wait(t, r2))

	assert.Equal(t, "<tr><td>libfoo-perl</td></tr>", found.InnerHTML())
	assert.Equal(t, "404: Not Found", missing.InnerHTML())
}

func TestHTTPTransport_States(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("p", chunkSize*2+10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	var states []ReadyState
	var final Response
	err := NewHTTPTransport(5*time.Second).Get(context.Background(), server.URL, func(s ReadyState, resp Response) {
		states = append(states, s)
		final = resp
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(states), 4)
	assert.Equal(t, StateOpened, states[0])
	assert.Equal(t, StateHeadersReceived, states[1])
	assert.Equal(t, StateLoading, states[2])
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Equal(t, 200, final.Status)
	assert.Equal(t, body, final.Body)
}

func TestHTTPTransport_ServerReasonPhrase(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()
		status := "599 Upstream Overloaded"
		if r.URL.Path == "/bare" {
			status = "404"
		}
		_, _ = buf.WriteString("HTTP/1.1 " + status + "\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
		_ = buf.Flush()
	}))
	defer server.Close()

	tests := []struct {
		path string
		want Response
	}{
		{"/custom", Response{Status: 599, StatusText: "Upstream Overloaded"}},
		{"/bare", Response{Status: 404, StatusText: "Not Found"}},
	}
	for _, tt := range tests {
		var final Response
		err := (&HTTPTransport{Client: server.Client()}).Get(context.Background(), server.URL+tt.path, func(_ ReadyState, resp Response) {
			final = resp
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, final, tt.path)
	}

	doc := NewMemoryDocument()
	pkg := doc.Add("pkg", NewMemoryElement(DisplayInline, ""))
	page := &Page{Doc: doc, Transport: &HTTPTransport{Client: server.Client()}}
	req, err := AsyncGet(context.Background(), page, "pkg", server.URL+"/custom")
	require.NoError(t, err)
	require.NoError(t, wait(t, req))
	assert.Equal(t, "599: Upstream Overloaded", pkg.InnerHTML())
}

func TestHTTPTransport_ConnectionFailure(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var last ReadyState
	var final Response
	err := NewHTTPTransport(time.Second).Get(context.Background(), url, func(s ReadyState, resp Response) {
		last = s
		final = resp
	})
	require.Error(t, err)
	assert.Equal(t, StateDone, last)
	assert.Equal(t, 0, final.Status)
}

func TestReadyState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "headers_received", StateHeadersReceived.String())
	assert.Equal(t, "ReadyState(9)", ReadyState(9).String())
}
