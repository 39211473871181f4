// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"net"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/switchyard-io/switchyard/pkg/registry"
)

const probeTimeout = 2 * time.Second

// ProbeLocation runs the reachability probe for a descriptor. The descriptor's
// Probe locator wins when set; otherwise the check is derived from the
// location scheme: stdio commands must resolve on PATH, http(s) hosts must
// accept a TCP connection, grpc targets must answer the standard gRPC health
// protocol. The probe is observational and never consumes policy slots.
func ProbeLocation(ctx context.Context, d registry.Descriptor) bool {
	target := d.Probe
	if target == "" {
		target = d.Location
	}

	switch {
	case strings.HasPrefix(target, "stdio:"):
		command, _ := splitCommand(strings.TrimPrefix(target, "stdio:"))
		if command == "" {
			return false
		}
		_, err := exec.LookPath(command)
		return err == nil
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return probeTCP(ctx, hostPortFromURL(target))
	case strings.HasPrefix(target, "tcp://"):
		return probeTCP(ctx, strings.TrimPrefix(target, "tcp://"))
	case strings.HasPrefix(target, "grpc://"):
		return probeGRPCHealth(ctx, strings.TrimPrefix(target, "grpc://"))
	default:
		return false
	}
}

func hostPortFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	return host
}

func probeTCP(ctx context.Context, hostPort string) bool {
	if hostPort == "" {
		return false
	}
	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", hostPort)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// probeGRPCHealth checks a remote adapter service via the gRPC health
// protocol. An unimplemented health service still counts as reachable; only
// transport failures and explicit NOT_SERVING answers fail the probe.
func probeGRPCHealth(ctx context.Context, target string) bool {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return false
	}
	defer func() { _ = conn.Close() }()

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		// Servers without the health service registered answer Unimplemented
		// over a live transport.
		return status.Code(err) == codes.Unimplemented
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}
