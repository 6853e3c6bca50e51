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
	"net"
	"strings"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/soheilhy/cmux"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TCPServer provides a muxed socket that can serve both gRPC and HTTP/1 on
// one port.
type TCPServer interface {
	// Run runs the TCPServer until ctx is done or Close is called.
	Run(ctx context.Context) error
	// GrpcListener returns the listener that should be used by the gRPC server.
	GrpcListener() net.Listener
	// HTTP1Listener returns the listener that should be used by the HTTP server.
	HTTP1Listener() net.Listener
	// Addr returns the address the server listens on.
	Addr() string
	// Close closes the TCPServer. The listeners returned by GrpcListener and
	// HTTP1Listener are closed as well.
	Close() error
}

type tcpServerImpl struct {
	mux           cmux.CMux
	rootListener  net.Listener
	grpcListener  net.Listener
	http1Listener net.Listener

	isClosed atomic.Bool
}

// NewTCPServer creates a new TCPServer listening on address. A port of 0
// picks a free one.
func NewTCPServer(address string) (TCPServer, error) {
	rootLis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.WrapError(errors.ErrTCPServerStart, err, address)
	}

	server := &tcpServerImpl{rootListener: rootLis}
	server.mux = cmux.New(rootLis)
	// HTTP/1 is matched by method, every other connection is an HTTP/2
	// connection of a gRPC client.
	server.http1Listener = server.mux.Match(cmux.HTTP1Fast())
	server.grpcListener = server.mux.Match(cmux.Any())
	return server, nil
}

// Run runs the mux. The call blocks until the server is closed.
func (s *tcpServerImpl) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.mux.Serve()
		if err != nil && IsErrNetClosing(err) {
			err = errors.ErrTCPServerClosed.GenWithStackByArgs()
		}
		errCh <- errors.Trace(err)
	}()

	select {
	case <-ctx.Done():
		if err := s.Close(); err != nil {
			log.Warn("failed to close tcp server", zap.Error(err))
		}
		<-errCh
		return errors.Trace(ctx.Err())
	case err := <-errCh:
		return err
	}
}

func (s *tcpServerImpl) GrpcListener() net.Listener {
	return s.grpcListener
}

func (s *tcpServerImpl) HTTP1Listener() net.Listener {
	return s.http1Listener
}

func (s *tcpServerImpl) Addr() string {
	return s.rootListener.Addr().String()
}

// Close closes the root listener, which makes the mux and every derived
// listener stop.
func (s *tcpServerImpl) Close() error {
	if s.isClosed.Swap(true) {
		return nil
	}
	err := s.rootListener.Close()
	if err != nil && !IsErrNetClosing(err) {
		return errors.Trace(err)
	}
	return nil
}

// IsErrNetClosing returns true if err is returned by a listener of a
// closed TCPServer.
func IsErrNetClosing(err error) bool {
	if err == nil {
		return false
	}
	if errors.Cause(err) == cmux.ErrListenerClosed {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
