package fakebackend

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/places/pkg/logger"
)

// Fault overrides responses for matching requests. A zero Status only
// applies Delay and lets the request through.
type Fault struct {
	// Method matches any method when empty.
	Method     string
	PathPrefix string
	Status     int
	Body       string
	// ContentType defaults to application/json.
	ContentType string
	// Times limits how often the fault fires; zero means until ClearFaults.
	Times int
	Delay time.Duration

	hits int
}

// RecordedRequest is a request as the server saw it.
type RecordedRequest struct {
	Method    string
	Path      string
	RawQuery  string
	Header    map[string]string
	Body      []byte
	RequestID string
}

var recordedHeaders = []string{"apikey", "Authorization", "Prefer", "Content-Type", "X-Upsert"}

// InjectFault registers f. Faults are matched in registration order.
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := f
	s.faults = append(s.faults, &fc)
}

// ClearFaults removes every registered fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestCount counts recorded requests whose path starts with prefix.
func (s *Server) RequestCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests forgets recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		stdCtx, cancel := s.adapter.Attach(ctx)
		defer cancel()

		rec := RecordedRequest{
			Method:    string(ctx.Method()),
			Path:      string(ctx.Path()),
			RawQuery:  string(ctx.URI().QueryString()),
			Header:    make(map[string]string, len(recordedHeaders)),
			Body:      append([]byte(nil), ctx.PostBody()...),
			RequestID: logger.RequestID(stdCtx),
		}
		for _, h := range recordedHeaders {
			if v := ctx.Request.Header.Peek(h); len(v) > 0 {
				rec.Header[h] = string(v)
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		fault := s.matchFault(rec.Method, rec.Path)
		s.mu.Unlock()

		log := logger.WithRequestID(stdCtx, s.logger)
		if fault != nil {
			if fault.Delay > 0 {
				time.Sleep(fault.Delay)
			}
			if fault.Status == 0 {
				next(ctx)
				return
			}
			contentType := fault.ContentType
			if contentType == "" {
				contentType = "application/json"
			}
			ctx.Response.Header.SetContentType(contentType)
			ctx.SetStatusCode(fault.Status)
			ctx.SetBodyString(fault.Body)
			log.Debug("fault injected", zap.String("method", rec.Method), zap.String("path", rec.Path), zap.Int("status", fault.Status))
			return
		}

		next(ctx)
		log.Debug("request served",
			zap.String("method", rec.Method),
			zap.String("path", rec.Path),
			zap.Int("status", ctx.Response.StatusCode()))
	}
}

// matchFault must be called with s.mu held.
func (s *Server) matchFault(method, path string) *Fault {
	for i, f := range s.faults {
		if f.Method != "" && !strings.EqualFold(f.Method, method) {
			continue
		}
		if !strings.HasPrefix(path, f.PathPrefix) {
			continue
		}
		f.hits++
		if f.Times > 0 && f.hits >= f.Times {
			s.faults = append(s.faults[:i:i], s.faults[i+1:]...)
		}
		return f
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
