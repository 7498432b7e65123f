package mongo_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

var (
	client   *mongo.Client
	startErr error
)

func TestMain(m *testing.M) {
	var stop func()
	client, stop, startErr = start(context.Background())
	code := m.Run()
	if stop != nil {
		stop()
	}
	os.Exit(code)
}

func start(ctx context.Context) (*mongo.Client, func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
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
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		terminate()
		return nil, nil, err
	}
	c, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Disconnect(context.Background())
		terminate()
	}, nil
}

func newDB(t *testing.T) *mongo.Database {
	t.Helper()
	if startErr != nil {
		t.Skipf("mongo container unavailable: %v", startErr)
	}
	return client.Database("test_" + uuid.NewString()[:8])
}

func eventMessage(title string, starts time.Time) messages.EventChanged {
	admin := uuid.New()
	e := domain.Event{
		ID: uuid.New(), AdminID: admin, Title: title,
		StartsAt: starts, EndsAt: starts.Add(3 * time.Hour),
		TicketTypes: []domain.TicketType{{Type: "Regular", Price: decimal.RequireFromString("12.5"), Quantity: 50}},
	}
	v := domain.Venue{ID: uuid.New(), Name: "Hall", Location: "Kisumu"}
	return messages.NewEventChanged(&admin, e, v, 50)
}

func TestCatalog_UpsertListDelete(t *testing.T) {
	ctx := context.Background()
	catalog := mongoadapter.NewCatalogRepository(newDB(t), observability.NewNopLogger())
	require.NoError(t, catalog.EnsureIndexes(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	later := eventMessage("Later", now.Add(48*time.Hour))
	sooner := eventMessage("Sooner", now.Add(24*time.Hour))
	past := eventMessage("Past", now.Add(-24*time.Hour))
	for _, m := range []messages.EventChanged{later, sooner, past} {
		require.NoError(t, catalog.UpsertEvent(ctx, mongoadapter.NewEventDoc(m)))
	}

	docs, err := catalog.ListUpcoming(ctx, now, 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Sooner", docs[0].Title)
	assert.Equal(t, "Later", docs[1].Title)
	assert.Equal(t, "12.50", docs[0].TicketTypes[0].Price)

	require.NoError(t, catalog.DeleteEvent(ctx, sooner.EventID.String()))
	doc, err := catalog.GetEvent(ctx, sooner.EventID.String())
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestCatalog_IgnoresStaleVersions(t *testing.T) {
	ctx := context.Background()
	catalog := mongoadapter.NewCatalogRepository(newDB(t), observability.NewNopLogger())

	m := eventMessage("Renamed", time.Now().Add(24*time.Hour))
	stale := m
	stale.Title = "Original"
	stale.Header.PublishedAt = m.Header.PublishedAt.Add(-time.Minute)

	require.NoError(t, catalog.UpsertEvent(ctx, mongoadapter.NewEventDoc(m)))
	require.NoError(t, catalog.UpsertEvent(ctx, mongoadapter.NewEventDoc(stale)))

	doc, err := catalog.GetEvent(ctx, m.EventID.String())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Renamed", doc.Title)
}

func TestAudit_StoresEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	audit := mongoadapter.NewAuditLogger(db, observability.NewNopLogger())

	id, actor := uuid.New(), uuid.New()
	payload := []byte(`{"ticket_id":"abc","reason":"purchase"}`)
	require.NoError(t, audit.LogMessage(ctx, id, messages.TicketSold, &actor, payload))
	require.NoError(t, audit.LogMessage(ctx, id, messages.TicketSold, &actor, payload))

	n, err := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"_id": id.String()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var log mongoadapter.AuditLog
	require.NoError(t, db.Collection("audit_logs").FindOne(ctx, bson.M{"_id": id.String()}).Decode(&log))
	assert.Equal(t, actor.String(), log.ActorID)
	assert.Equal(t, "purchase", log.Data["reason"])
}
