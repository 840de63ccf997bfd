//go:build integration

package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fleetscan/worker/internal/coordinator"
)

// setupRedis starts a throwaway Redis container and returns its address,
// grounded on the generic-container pattern the pack uses for Postgres in
// BigKAA-goartstore's database_test.go — no testcontainers Redis module is
// in the dependency pack, so GenericContainer is used directly instead.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "docker.io/redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return host + ":" + port.Port()
}

func TestClient_PingAndEmit(t *testing.T) {
	addr := setupRedis(t)
	client := coordinator.New(addr, 0)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	expireAt := time.Now().Add(time.Minute)
	require.NoError(t, client.Emit(ctx, "root-1", []byte(`{"file":{}}`), expireAt))
}

func TestClient_PushAndDrainBytes(t *testing.T) {
	addr := setupRedis(t)
	client := coordinator.New(addr, 0)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	require.NoError(t, client.PushBytes(ctx, "ptr-1", []byte("hello ")))
	require.NoError(t, client.PushBytes(ctx, "ptr-1", []byte("world")))

	data, err := client.DrainBytes(ctx, "ptr-1")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	empty, err := client.DrainBytes(ctx, "ptr-empty")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestClient_PopTask(t *testing.T) {
	addr := setupRedis(t)
	client := coordinator.New(addr, 0)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	_, _, ok, err := client.PopTask(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
