package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// TLSOptions carries the PEM-encoded certificate and key material a secure
// listener is created with.
type TLSOptions struct {
	Cert []byte
	Key  []byte
}

// ListenerFactory creates the listener the application is bound to. A
// bootstrap makes exactly one creation call: CreateServer for a plain
// listener, or CreateTLSServer when TLS is configured.
type ListenerFactory interface {
	CreateServer(handler http.Handler) (*http.Server, error)
	CreateTLSServer(opts TLSOptions, handler http.Handler) (*http.Server, error)
}

// HTTPListenerFactory is the default ListenerFactory, producing
// net/http servers bound to a fixed address.
type HTTPListenerFactory struct {
	Addr string
}

// NewHTTPListenerFactory creates the default listener factory.
func NewHTTPListenerFactory(addr string) *HTTPListenerFactory {
	return &HTTPListenerFactory{Addr: addr}
}

func (f *HTTPListenerFactory) newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         f.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// CreateServer creates a plain HTTP server serving handler.
func (f *HTTPListenerFactory) CreateServer(handler http.Handler) (*http.Server, error) {
	return f.newServer(handler), nil
}

// CreateTLSServer creates an HTTPS server from in-memory certificate and
// key material.
func (f *HTTPListenerFactory) CreateTLSServer(opts TLSOptions, handler http.Handler) (*http.Server, error) {
	cert, err := tls.X509KeyPair(opts.Cert, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid tls key pair: %w", err)
	}

	srv := f.newServer(handler)
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return srv, nil
}
