package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startProbe(t *testing.T, checks map[string]Check) healthpb.HealthClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(checks, WithInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestAllChecksPassing(t *testing.T) {
	c := startProbe(t, map[string]Check{
		"dataset": func(context.Context) error { return nil },
	})
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall = %v", got)
	}
	if got := status(t, c, ServicePrefix+"dataset"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("dataset = %v", got)
	}
}

func TestFailingCheckMarksNotServing(t *testing.T) {
	c := startProbe(t, map[string]Check{
		"dataset": func(context.Context) error { return nil },
		"archive": func(context.Context) error { return errors.New("locked") },
	})
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("overall = %v", got)
	}
	if got := status(t, c, ServicePrefix+"archive"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("archive = %v", got)
	}
	if got := status(t, c, ServicePrefix+"dataset"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("dataset = %v", got)
	}
}

func TestStatusFollowsRecovery(t *testing.T) {
	var healthy atomic.Bool
	c := startProbe(t, map[string]Check{
		"archive": func(context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("down")
		},
	})
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("overall = %v", got)
	}

	healthy.Store(true)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status(t, c, "") == healthpb.HealthCheckResponse_SERVING {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("status never recovered")
}
