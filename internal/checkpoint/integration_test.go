//go:build integration

package checkpoint_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/raphaelgruber/docchat/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	postgresDSN string
	redisURL    string
)

// TestMain starts Postgres and Redis containers for the backend tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "docchat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Postgres container: %v", err)
	}

	rd, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		_ = pg.Terminate(ctx)
		log.Fatalf("Failed to start Redis container: %v", err)
	}

	postgresDSN = fmt.Sprintf("postgres://postgres:postgres@%s/docchat?sslmode=disable", endpoint(ctx, pg, "5432"))
	redisURL = fmt.Sprintf("redis://%s/0", endpoint(ctx, rd, "6379"))

	code := m.Run()

	_ = rd.Terminate(ctx)
	_ = pg.Terminate(ctx)
	os.Exit(code)
}

func endpoint(ctx context.Context, c testcontainers.Container, port string) string {
	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewPostgresStore(ctx, postgresDSN, nil)
	require.NoError(t, err)
	defer store.Close()

	testutil.RunStoreContract(t, store, "pg-")
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	locker, err := checkpoint.NewRedisLocker(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	defer locker.Close()

	release, err := locker.Acquire(ctx, "u:c")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "u:c")
	require.ErrorIs(t, err, checkpoint.ErrThreadBusy)

	require.NoError(t, release(ctx))

	again, err := locker.Acquire(ctx, "u:c")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLockerExpires(t *testing.T) {
	ctx := context.Background()
	locker, err := checkpoint.NewRedisLocker(ctx, redisURL, time.Second)
	require.NoError(t, err)
	defer locker.Close()

	stale, err := locker.Acquire(ctx, "u:expiring")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		release, err := locker.Acquire(ctx, "u:expiring")
		if err != nil {
			return false
		}
		return release(ctx) == nil
	}, 5*time.Second, 100*time.Millisecond)

	// The stale holder's token no longer matches, so its release is a no-op.
	require.NoError(t, stale(ctx))
}
