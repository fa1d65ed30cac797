package web

import (
	"crypto/rand"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	garbageChunk    = 1 << 20
	maxGarbageChunk = 1024
)

var garbage = func() []byte {
	b := make([]byte, garbageChunk)
	_, _ = rand.Read(b)
	return b
}()

// handleEmpty answers ping and upload requests
func handleEmpty(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

// handleGarbage streams ckSize MiB of incompressible data
func handleGarbage(w http.ResponseWriter, r *http.Request) {
	chunks := 4
	if v, err := strconv.Atoi(r.URL.Query().Get("ckSize")); err == nil && v > 0 {
		chunks = min(v, maxGarbageChunk)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(chunks*garbageChunk))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	for i := 0; i < chunks; i++ {
		if _, err := w.Write(garbage); err != nil {
			return
		}
	}
}

// handleGetIP returns the client address as plain text
func handleGetIP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, clientIP(r))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
