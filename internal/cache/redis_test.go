package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testAddr string

func mustStartRedisContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		return container.Terminate, err
	}
	port, err := container.MappedPort(context.Background(), "6379/tcp")
	if err != nil {
		return container.Terminate, err
	}

	testAddr = host + ":" + port.Port()
	return container.Terminate, nil
}

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(m.Run())
	}

	var teardown func(context.Context, ...testcontainers.TerminateOption) error
	if isDockerAvailable() {
		var err error
		teardown, err = mustStartRedisContainer()
		if err != nil {
			// Redis-backed tests skip themselves without an address.
			testAddr = ""
		}
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}
	os.Exit(code)
}

func newTestService(t *testing.T) Service {
	t.Helper()
	if testAddr == "" {
		t.Skip("redis container not available")
	}
	srv, err := New(context.Background(), Options{Addr: testAddr})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, err := New(ctx, Options{Addr: "127.0.0.1:1"})
	if err == nil {
		srv.Close()
		t.Fatal("New() against a closed port should fail")
	}
	if srv != nil {
		t.Error("New() should not return a service on error")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestService(t)

	stats := srv.Health()
	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s (%s)", stats["status"], stats["error"])
	}
	if _, ok := stats["total_conns"]; !ok {
		t.Error("expected pool stats in health report")
	}
}

func TestService_Interface(t *testing.T) {
	var _ Service = (*service)(nil)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}
