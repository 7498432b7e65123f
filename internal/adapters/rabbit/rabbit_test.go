package rabbit_test

import (
	"context"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/robertarktes/venue-ticketing/internal/adapters/rabbit"
	"github.com/robertarktes/venue-ticketing/internal/messages"
)

var (
	conn     *amqp.Connection
	startErr error
)

func TestMain(m *testing.M) {
	var stop func()
	conn, stop, startErr = start(context.Background())
	code := m.Run()
	if stop != nil {
		stop()
	}
	os.Exit(code)
}

func start(ctx context.Context) (*amqp.Connection, func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health/checks/alarms").WithPort("15672").WithBasicAuth("guest", "guest"),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	port, err := container.MappedPort(ctx, "5672/tcp")
	if err != nil {
		terminate()
		return nil, nil, err
	}
	c, err := amqp.Dial("amqp://guest:guest@" + host + ":" + port.Port() + "/")
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Close()
		terminate()
	}, nil
}

func needBroker(t *testing.T) {
	t.Helper()
	if startErr != nil {
		t.Skipf("rabbitmq container unavailable: %v", startErr)
	}
}

func TestPublishConsume_RoutesByKey(t *testing.T) {
	needBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	consumer, err := rabbit.NewConsumer(conn, "test.tickets", "ticket.*")
	require.NoError(t, err)
	defer consumer.Close()
	deliveries, err := consumer.Consume(ctx)
	require.NoError(t, err)

	pub, err := rabbit.NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(ctx, messages.EventCreated, amqp.Publishing{MessageId: "skip", Body: []byte(`{}`)}))
	require.NoError(t, pub.Publish(ctx, messages.TicketSold, amqp.Publishing{
		MessageId:   "ticket.sold:1",
		ContentType: "application/json",
		Body:        []byte(`{"ticket_id":"1"}`),
	}))

	select {
	case d := <-deliveries:
		assert.Equal(t, messages.TicketSold, d.RoutingKey)
		assert.Equal(t, "ticket.sold:1", d.MessageId)
		assert.JSONEq(t, `{"ticket_id":"1"}`, string(d.Body))
		require.NoError(t, d.Ack(false))
	case <-ctx.Done():
		t.Fatal("no delivery")
	}

	select {
	case d := <-deliveries:
		t.Fatalf("unexpected delivery %s", d.RoutingKey)
	case <-time.After(500 * time.Millisecond):
	}
}
