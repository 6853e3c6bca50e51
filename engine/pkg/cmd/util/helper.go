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

package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	defaultContextMu sync.RWMutex
	defaultContext   context.Context
)

// InitCmd sets the default context of the command process, which is
// canceled on the first exit signal, and returns its cancel function.
func InitCmd(_ *cobra.Command) context.CancelFunc {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case sig := <-sc:
			log.Info("got signal to exit", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sc)
	}()

	SetDefaultContext(ctx)
	return cancel
}

// SetDefaultContext replaces the context returned by GetDefaultContext.
func SetDefaultContext(ctx context.Context) {
	defaultContextMu.Lock()
	defer defaultContextMu.Unlock()
	defaultContext = ctx
}

// GetDefaultContext returns the context set by InitCmd, or a background
// context if the command was not initialized.
func GetDefaultContext() context.Context {
	defaultContextMu.RLock()
	defer defaultContextMu.RUnlock()
	if defaultContext == nil {
		return context.Background()
	}
	return defaultContext
}

// Server is a long running engine process started by a command.
type Server interface {
	Run(ctx context.Context) error
}

// RunServer initializes the logger and the exit signal handler, then runs the
// server built by newServer until it fails or the process is signaled. A
// server stopped by a signal exits successfully.
func RunServer(
	cmd *cobra.Command, role string, logCfg *logutil.Config, cfg fmt.Stringer,
	newServer func() (Server, error),
) error {
	if err := logutil.InitLogger(logCfg); err != nil {
		return errors.Trace(err)
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cancel := InitCmd(cmd)
	defer cancel()

	log.Info("starting seatunnel engine "+role, zap.Stringer("config", cfg))
	server, err := newServer()
	if err != nil {
		return errors.Trace(err)
	}
	err = server.Run(GetDefaultContext())
	if err != nil && !errors.IsContextCanceledError(err) {
		log.Error("run seatunnel engine "+role+" with error", zap.Error(err))
		return errors.Trace(err)
	}
	log.Info("seatunnel engine " + role + " exits successfully")
	return nil
}

// JSONPrint will output the data in JSON format.
func JSONPrint(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Printf("%s\n", data)
	return nil
}
