package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shacharon/pizza-sub006/pkg/database"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

func newTestSink(t *testing.T) (*Sink, *database.Client) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgContainer) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "test", SSLMode: "disable",
		MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewSink(client.DB()), client
}

func TestSink_RecordTransitionAndStageEvent(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	sink.RecordTransition(ctx, "req-1", jobstore.StatusPending, jobstore.StatusRunning, "")
	sink.RecordStageEvent(ctx, "req-1", "gate", 15, "completed")

	var transitions, events int
	require.NoError(t, client.DB().QueryRowContext(ctx, `SELECT count(*) FROM job_transitions WHERE request_id = $1`, "req-1").Scan(&transitions))
	require.NoError(t, client.DB().QueryRowContext(ctx, `SELECT count(*) FROM stage_events WHERE request_id = $1`, "req-1").Scan(&events))

	require.Equal(t, 1, transitions)
	require.Equal(t, 1, events)
}

func TestSink_NilDBNeverPanics(t *testing.T) {
	var sink *Sink = NewSink(nil)
	sink.RecordTransition(context.Background(), "req-2", jobstore.StatusPending, jobstore.StatusRunning, "")
	sink.RecordStageEvent(context.Background(), "req-2", "gate", 5, "completed")
}
