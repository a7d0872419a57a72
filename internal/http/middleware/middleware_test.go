package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
)

// logSink пишет JSON-записи slog в буфер и отдаёт их разобранными.
type logSink struct {
	buf bytes.Buffer
}

func (s *logSink) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&s.buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *logSink) records(t *testing.T) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s.buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}

	return out
}

func (s *logSink) last(t *testing.T) map[string]any {
	t.Helper()
	recs := s.records(t)
	require.NotEmpty(t, recs)
	return recs[len(recs)-1]
}

func makeReq(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = (&net.TCPAddr{IP: net.ParseIP("203.0.113.9"), Port: 12345}).String()
	return req
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errEnvelope struct {
	Error apiError `json:"error"`
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) errEnvelope {
	t.Helper()
	var env errEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string

	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-begin")
				next.ServeHTTP(w, r)
				order = append(order, name+"-end")
			})
		}
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	Chain(final, mark("m1"), mark("m2")).ServeHTTP(rr, makeReq(http.MethodGet, "/chain"))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seenHeader, seenCtx string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get(HeaderRequestID)
		seenCtx = RequestIDFrom(r.Context())
	})

	rr := httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, makeReq(http.MethodGet, "/rid"))

	respID := rr.Header().Get(HeaderRequestID)
	require.Len(t, respID, 32)
	require.Equal(t, respID, seenHeader)
	require.Equal(t, respID, seenCtx)
}

func TestRequestID_UseExisting(t *testing.T) {
	const given = "abc123-existing-id"

	var seenCtx string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtx = RequestIDFrom(r.Context())
	})

	req := makeReq(http.MethodGet, "/rid")
	req.Header.Set(HeaderRequestID, given)
	rr := httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, req)

	require.Equal(t, given, rr.Header().Get(HeaderRequestID))
	require.Equal(t, given, seenCtx)
}

func TestTimeout_SetsDeadline_WhenAbsent(t *testing.T) {
	var hasDeadline bool

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	Chain(h, Timeout(50*time.Millisecond)).ServeHTTP(httptest.NewRecorder(), makeReq(http.MethodGet, "/t"))
	require.True(t, hasDeadline)
}

func TestTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	var childDL time.Time

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		childDL, _ = r.Context().Deadline()
	})

	parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	Chain(h, Timeout(time.Second)).ServeHTTP(httptest.NewRecorder(), makeReq(http.MethodGet, "/t").WithContext(parent))

	parentDL, _ := parent.Deadline()
	require.WithinDuration(t, parentDL, childDL, time.Millisecond)
}

func TestTimeout_ZeroIsNoop(t *testing.T) {
	var hasDeadline bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	Chain(h, Timeout(0)).ServeHTTP(httptest.NewRecorder(), makeReq(http.MethodGet, "/t"))
	require.False(t, hasDeadline)
}

func TestTimeout_SilentHandlerGets504(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	rr := httptest.NewRecorder()
	Chain(h, Timeout(10*time.Millisecond)).ServeHTTP(rr, makeReq(http.MethodGet, "/slow"))

	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	require.Equal(t, "deadline_exceeded", decodeErr(t, rr).Error.Code)
}

func TestTimeout_KeepsWrittenResponse(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		<-r.Context().Done()
	})

	rr := httptest.NewRecorder()
	Chain(h, Timeout(10*time.Millisecond)).ServeHTTP(rr, makeReq(http.MethodGet, "/slow"))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, rr.Body.String())
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	sink := &logSink{}
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := makeReq(http.MethodGet, "/panic")
	req = req.WithContext(log.Into(req.Context(), sink.logger()))
	rr := httptest.NewRecorder()

	Chain(panicHandler, Recover()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	env := decodeErr(t, rr)
	require.Equal(t, "internal", env.Error.Code)
	require.NotContains(t, rr.Body.String(), "boom")

	rec := sink.last(t)
	require.Equal(t, "panic", rec["msg"])
	require.Equal(t, "ERROR", rec["level"])
	require.Equal(t, "boom", rec["reason"])
	require.NotEmpty(t, rec["stack"])
}

func TestRecover_RethrowsAbortHandler(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Chain(h, Recover()).ServeHTTP(httptest.NewRecorder(), makeReq(http.MethodGet, "/abort"))
	})
}

func TestLogging_WritesRecord(t *testing.T) {
	sink := &logSink{}
	const rid = "rid-456"

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.From(r.Context()).Info("inner")
		_, _ = w.Write([]byte("0123456789"))
	})

	handler := Chain(final, RequestID(), Logging(sink.logger()))

	req := makeReq(http.MethodGet, "/log")
	req.Header.Set(HeaderRequestID, rid)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	recs := sink.records(t)
	require.Len(t, recs, 2)

	// Логгер из контекста уже несёт request_id.
	require.Equal(t, "inner", recs[0]["msg"])
	require.Equal(t, rid, recs[0]["request_id"])

	rec := recs[1]
	require.Equal(t, "http", rec["msg"])
	require.Equal(t, "INFO", rec["level"])
	require.Equal(t, http.MethodGet, rec["method"])
	require.Equal(t, "/log", rec["path"])
	require.EqualValues(t, http.StatusOK, rec["status"])
	require.EqualValues(t, 10, rec["bytes"])
	require.Equal(t, rid, rec["request_id"])
	require.Equal(t, "203.0.113.0", rec["ip"])
}

func TestLogging_GeneratedRequestIDMatchesResponse(t *testing.T) {
	sink := &logSink{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	Chain(final, RequestID(), Logging(sink.logger())).ServeHTTP(rr, makeReq(http.MethodGet, "/gen"))

	rid := rr.Header().Get(HeaderRequestID)
	require.Len(t, rid, 32)
	require.Equal(t, rid, sink.last(t)["request_id"])
}

func TestLogging_ServerErrorIsErrorLevel(t *testing.T) {
	sink := &logSink{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	Chain(final, Logging(sink.logger())).ServeHTTP(httptest.NewRecorder(), makeReq(http.MethodGet, "/x"))

	rec := sink.last(t)
	require.Equal(t, "ERROR", rec["level"])
	require.EqualValues(t, http.StatusBadGateway, rec["status"])
}

func TestStatusWriter_CountsBytes_AndDefaultStatus200(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	require.Equal(t, http.StatusOK, sw.Status())

	_, _ = sw.Write([]byte("abcd"))
	require.Equal(t, http.StatusOK, sw.status)
	require.Equal(t, 4, sw.count)
	require.Same(t, sw, newStatusWriter(sw))
}

func TestClientIP(t *testing.T) {
	req := makeReq(http.MethodGet, "/")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "10.1.2.3"
	require.Equal(t, "10.1.2.3", ClientIP(req))
}
