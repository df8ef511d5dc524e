package links

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/get-only", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck_ReportsOnlyBrokenLinks(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	c := New(WithClient(srv.Client()))

	broken := c.Check(context.Background(), []string{
		srv.URL + "/ok",
		srv.URL + "/gone",
		srv.URL + "/get-only",
		"ftp://example.com/file",
	})

	require.Len(t, broken, 2)
	var se *StatusError
	require.ErrorAs(t, broken[srv.URL+"/gone"], &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "status 404 Not Found", se.Error())
	assert.Contains(t, broken["ftp://example.com/file"].Error(), "unsupported scheme")
}

func TestCheck_Timeout(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	c := New(WithClient(srv.Client()), WithTimeout(50*time.Millisecond))

	broken := c.Check(context.Background(), []string{srv.URL + "/slow"})
	require.Len(t, broken, 1)
}

func TestCheck_DedupesAndLimitsConcurrency(t *testing.T) {
	t.Parallel()
	var inFlight, peak, hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}))
	t.Cleanup(srv.Close)

	var urls []string
	for i := 0; i < 6; i++ {
		urls = append(urls, srv.URL+"/"+string(rune('a'+i)))
	}
	urls = append(urls, urls[0])

	c := New(WithClient(srv.Client()), WithLimit(2))
	assert.Empty(t, c.Check(context.Background(), urls))
	assert.Equal(t, int32(6), hits.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCheck_Span(t *testing.T) {
	// Not parallel: swaps the package tracer.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv := newServer(t)
	c := New(WithClient(srv.Client()))

	ctx, root := tp.Tracer("test").Start(context.Background(), "root")
	prev := tracer
	tracer = tp.Tracer("stubcat.links")
	t.Cleanup(func() { tracer = prev })

	c.Check(ctx, []string{srv.URL + "/ok", srv.URL + "/gone"})
	root.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	span := spans[0]
	assert.Equal(t, "links.Checker.Check", span.Name)
	assert.Contains(t, span.Attributes, attribute.Int("links.count", 2))
	assert.Contains(t, span.Attributes, attribute.Int("links.broken", 1))
}
