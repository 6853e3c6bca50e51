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

// Package enginepb defines the RPC surface between clients, the master and
// workers. Messages are plain Go structs carried by a JSON gRPC codec.
package enginepb

import (
	"context"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype of the engine codec.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

// DialOptions returns the dial options every engine client must use.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}

type methodHandler = func(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error)

// unaryMethod builds the grpc.MethodDesc of a unary method whose handler is
// call on the registered server.
func unaryMethod[S any, Req any, Resp any](
	service, method string,
	call func(srv S, ctx context.Context, req *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	var handler methodHandler = func(
		srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
	) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		})
	}
	return grpc.MethodDesc{MethodName: method, Handler: handler}
}

func invoke[Resp any](
	ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any, opts ...grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Empty is the message of calls that carry nothing.
type Empty struct{}
