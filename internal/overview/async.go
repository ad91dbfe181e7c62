package overview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// ErrNoTransport is returned by AsyncGet when the page has no transport.
var ErrNoTransport = errors.New("no http transport available")

// MsgNoTransport is the alert shown when a page cannot issue requests.
const MsgNoTransport = "Your browser lacks the needed ability to use Ajax. Sorry."

// Fragments appended while a request is in flight.
const (
	loadingMarker  = "<br/>Loading..."
	progressMarker = "."
)

// ReadyState is the lifecycle stage of an asynchronous request.
type ReadyState int

const (
	StateUnsent ReadyState = iota
	StateOpened
	StateHeadersReceived
	StateLoading
	StateDone
)

func (s ReadyState) String() string {
	switch s {
	case StateUnsent:
		return "unsent"
	case StateOpened:
		return "opened"
	case StateHeadersReceived:
		return "headers_received"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// Response is the request as seen at a state change. Status and Body are
// only meaningful once the state is StateDone.
type Response struct {
	Status     int
	StatusText string
	Body       string
}

// StateFunc receives every readiness state change of a request.
type StateFunc func(state ReadyState, resp Response)

// Transport issues GET requests and reports their state changes in order.
// Get blocks until the request is done or ctx ends.
type Transport interface {
	Get(ctx context.Context, url string, onChange StateFunc) error
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(msg string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(msg string)

// Alert implements Alerter.
func (f AlertFunc) Alert(msg string) { f(msg) }

// Page ties a document to the transport and alerter the helpers use.
// All document mutations made by AsyncGet callbacks are serialized on the
// page, like callbacks on a single event loop.
type Page struct {
	Doc       Document
	Transport Transport
	Alerter   Alerter
	Log       logr.Logger

	mu sync.Mutex
}

func (p *Page) alert(msg string) {
	if p.Alerter != nil {
		p.Alerter.Alert(msg)
		return
	}
	p.Log.Info("alert", "message", msg)
}

// Request is an in-flight AsyncGet.
type Request struct {
	URL string
	ID  string

	done chan struct{}
	err  error
}

// Done is closed when the request has completed.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request completes or ctx ends and returns the
// transport error, if any.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncGet loads url into the element with id without blocking. While the
// request runs the element gets a loading marker and a dot per chunk; when
// it is done the content is replaced by the body on 200, or by
// "{status}: {status text}" otherwise.
//
// A missing transport alerts and returns ErrNoTransport. An id that does
// not resolve alerts on every state change and leaves the page untouched.
func AsyncGet(ctx context.Context, page *Page, id, url string) (*Request, error) {
	if page.Transport == nil {
		page.alert(MsgNoTransport)
		return nil, ErrNoTransport
	}

	req := &Request{URL: url, ID: id, done: make(chan struct{})}
	log := page.Log.WithValues("id", id, "url", url)

	go func() {
		defer close(req.done)
		req.err = page.Transport.Get(ctx, url, func(state ReadyState, resp Response) {
			page.stateChanged(id, state, resp)
		})
		if req.err != nil {
			log.Error(req.err, "request failed")
			return
		}
		log.V(1).Info("request completed")
	}()

	return req, nil
}

func (p *Page) stateChanged(id string, state ReadyState, resp Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.Doc.ElementByID(id)
	if !ok {
		p.alert(fmt.Sprintf("Element %q not found", id))
		return
	}

	switch {
	case state <= StateOpened:
		el.SetInnerHTML(el.InnerHTML() + loadingMarker)
	case state == StateLoading:
		el.SetInnerHTML(el.InnerHTML() + progressMarker)
	case state == StateDone:
		if resp.Status == 200 {
			el.SetInnerHTML(resp.Body)
		} else {
			el.SetInnerHTML(fmt.Sprintf("%d: %s", resp.Status, resp.StatusText))
		}
	}
}
