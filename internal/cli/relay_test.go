package cli

import (
	"context"
	"testing"
	"time"
)

type mockServer struct {
	listenCalled   chan struct{}
	shutdownCalled chan struct{}
	listenErr      error
}

func newMockServer(listenErr error) *mockServer {
	return &mockServer{
		listenCalled:   make(chan struct{}),
		shutdownCalled: make(chan struct{}),
		listenErr:      listenErr,
	}
}

func (m *mockServer) ListenAndServe() error {
	close(m.listenCalled)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.shutdownCalled
	return nil
}

func (m *mockServer) Shutdown(_ context.Context) error {
	select {
	case <-m.shutdownCalled:
	default:
		close(m.shutdownCalled)
	}
	return nil
}

func TestServeComponentsShutdownOnContextCancel(t *testing.T) {
	relayMock := newMockServer(nil)
	httpMock := newMockServer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		serveComponents(ctx, relayMock, httpMock, time.Second)
		close(done)
	}()

	<-relayMock.listenCalled
	<-httpMock.listenCalled

	cancel()

	select {
	case <-relayMock.shutdownCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("relay server was not shut down")
	}
	select {
	case <-httpMock.shutdownCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server was not shut down")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveComponents did not return")
	}
}

func TestSetupTLSMissingFiles(t *testing.T) {
	if _, err := setupTLS("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Fatal("expected error for missing certificate files")
	}
}
