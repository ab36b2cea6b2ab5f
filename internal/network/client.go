package network

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

type ClientOptions struct {
	// SOCKS5 proxy address (host:port); direct connection if empty.
	ProxyAddr string
	// Overall request timeout; zero means no timeout, which is what long media transfers need.
	Timeout time.Duration
}

// NewClient creates the http.Client shared by every fetch and transfer of a run.
func NewClient(opts ClientOptions) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to configure SOCKS5 proxy (%s): %w", opts.ProxyAddr, err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", opts.ProxyAddr)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	}
	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}, nil
}
