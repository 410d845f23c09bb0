package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortHint(t *testing.T) {
	assert.Contains(t, portHint(8081, assert.AnError), "--port 8082")
	assert.Contains(t, portHint(65535, assert.AnError), "--port 8081")
}

func TestDisplayURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8081/claude_chat.html", displayURL("0.0.0.0", 8081))
	assert.Equal(t, "http://127.0.0.1:9000/claude_chat.html", displayURL("127.0.0.1", 9000))
}

func TestBannerShowsInstance(t *testing.T) {
	out := banner(bannerInfo{Version: "1.0.0", Instance: "PID7", URL: "http://localhost:8081/claude_chat.html", RootDir: "/work", Command: "claude", Timeout: time.Minute, StreamTimeout: 3 * time.Minute})
	for _, want := range []string{"PID7", "/work", "claude_chat.html", "1m0s"} {
		assert.Contains(t, out, want)
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBusyPortIsDetected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = net.Listen("tcp", ln.Addr().String())
	assert.Error(t, err)
}
