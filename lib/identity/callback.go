// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// callbackResult is what the loopback server extracts from the
// provider's redirect.
type callbackResult struct {
	code      string
	state     string
	errorCode string
}

// callbackServer binds a fixed-port loopback listener and waits for a
// single GET /callback carrying the authorization code and state. Its
// lifecycle mirrors the teacher's HTTPServer: Serve blocks until either
// the callback arrives or the context is cancelled, then shuts down
// gracefully.
type callbackServer struct {
	port int

	resultCh chan callbackResult
	errCh    chan error
}

func newCallbackServer(port int) *callbackServer {
	return &callbackServer{
		port:     port,
		resultCh: make(chan callbackResult, 1),
		errCh:    make(chan error, 1),
	}
}

// waitForCode binds the listener, serves until either the callback is
// received, the context is cancelled, or timeout elapses, and returns
// the extracted authorization code once the callback's state matches
// expectedState.
func (s *callbackServer) waitForCode(ctx context.Context, expectedState string, timeout time.Duration) (string, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		result := callbackResult{
			code:      r.URL.Query().Get("code"),
			state:     r.URL.Query().Get("state"),
			errorCode: r.URL.Query().Get("error"),
		}
		if result.errorCode != "" {
			writeCallbackPage(w, false, "Authentication failed: "+result.errorCode)
		} else if result.state != expectedState {
			writeCallbackPage(w, false, "Authentication failed: state mismatch")
		} else {
			writeCallbackPage(w, true, "Authentication successful. You may close this window.")
		}
		select {
		case s.resultCh <- result:
		default:
		}
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return "", fmt.Errorf("identity: binding loopback callback listener: %w", err)
	}

	server := &http.Server{Handler: mux}
	serveDone := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveDone <- serveErr
			return
		}
		serveDone <- nil
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	select {
	case result := <-s.resultCh:
		shutdown()
		if result.errorCode != "" {
			return "", fmt.Errorf("identity: authorization denied: %s", result.errorCode)
		}
		if result.state != expectedState {
			return "", fmt.Errorf("identity: callback state mismatch")
		}
		return result.code, nil
	case err := <-serveDone:
		if err != nil {
			return "", fmt.Errorf("identity: callback server error: %w", err)
		}
		return "", fmt.Errorf("identity: callback server stopped unexpectedly")
	case <-ctx.Done():
		shutdown()
		return "", ctx.Err()
	case <-timeoutTimer.C:
		shutdown()
		return "", fmt.Errorf("identity: timed out waiting for authentication callback")
	}
}

func writeCallbackPage(w http.ResponseWriter, ok bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
	}
	fmt.Fprintf(w, "<!doctype html><html><body><p>%s</p></body></html>", message)
}
