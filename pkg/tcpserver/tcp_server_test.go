// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package tcpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestServer(t *testing.T) (TCPServer, string) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	server, err := NewTCPServer(addr)
	require.NoError(t, err)
	require.Equal(t, addr, server.Addr())
	return server, addr
}

func TestTCPServerHTTP1AndGrpc(t *testing.T) {
	server, addr := newTestServer(t)
	defer func() {
		require.NoError(t, server.Close())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := server.Run(ctx)
		require.Error(t, err)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	httpServer := &http.Server{Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = httpServer.Serve(server.HTTP1Listener())
	}()

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = grpcServer.Serve(server.GrpcListener())
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "ok", string(body))

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	hresp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, hresp.Status)

	cancel()
	grpcServer.Stop()
	_ = httpServer.Close()
	wg.Wait()
}

func TestTCPServerClose(t *testing.T) {
	server, _ := newTestServer(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(context.Background())
	}()
	require.NoError(t, server.Close())
	// closing twice is fine
	require.NoError(t, server.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run did not return after Close")
	}
}
