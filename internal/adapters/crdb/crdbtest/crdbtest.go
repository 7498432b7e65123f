// Package crdbtest starts a throwaway single-node CockroachDB for tests.
package crdbtest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
)

const image = "cockroachdb/cockroach:v24.1.1"

// Start runs a cockroach container and returns a migrated repository over it.
// stop closes the pool and terminates the container.
func Start(ctx context.Context) (repo *crdb.Repository, pool *pgxpool.Pool, stop func(), err error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, nil, err
	}
	port, err := container.MappedPort(ctx, "26257/tcp")
	if err != nil {
		terminate()
		return nil, nil, nil, err
	}

	dsn := fmt.Sprintf("postgres://root@%s:%s/defaultdb?sslmode=disable", host, port.Port())
	pool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		terminate()
		return nil, nil, nil, err
	}

	repo = crdb.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		terminate()
		return nil, nil, nil, err
	}
	return repo, pool, func() {
		pool.Close()
		terminate()
	}, nil
}
