package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

// CatalogRepository keeps a denormalised, read-only copy of every event for
// public listing. It is fed from the outbox and may lag the database.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

type EventDoc struct {
	ID            string          `bson:"_id" json:"id"`
	AdminID       string          `bson:"admin_id" json:"admin_id"`
	VenueID       string          `bson:"venue_id" json:"venue_id"`
	VenueName     string          `bson:"venue_name" json:"venue_name"`
	VenueLocation string          `bson:"venue_location" json:"venue_location"`
	Title         string          `bson:"title" json:"title"`
	Description   string          `bson:"description" json:"description"`
	StartsAt      time.Time       `bson:"starts_at" json:"starts_at"`
	EndsAt        time.Time       `bson:"ends_at" json:"ends_at"`
	Lineup        []string        `bson:"lineup" json:"lineup"`
	Images        []string        `bson:"images" json:"images"`
	TicketTypes   []TicketTypeDoc `bson:"ticket_types" json:"ticket_types"`
	Version       time.Time       `bson:"version" json:"-"`
	UpdatedAt     time.Time       `bson:"updated_at" json:"updated_at"`
}

type TicketTypeDoc struct {
	Type     string `bson:"type" json:"type"`
	Price    string `bson:"price" json:"price"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

func NewEventDoc(m messages.EventChanged) EventDoc {
	types := make([]TicketTypeDoc, len(m.TicketTypes))
	for i, t := range m.TicketTypes {
		types[i] = TicketTypeDoc{Type: t.Type, Price: t.Price.StringFixed(2), Quantity: t.Quantity}
	}
	return EventDoc{
		ID:            m.EventID.String(),
		AdminID:       m.AdminID.String(),
		VenueID:       m.VenueID.String(),
		VenueName:     m.VenueName,
		VenueLocation: m.VenueLocation,
		Title:         m.Title,
		Description:   m.Description,
		StartsAt:      m.StartsAt,
		EndsAt:        m.EndsAt,
		Lineup:        m.Lineup,
		Images:        m.Images,
		TicketTypes:   types,
		Version:       m.Header.PublishedAt,
	}
}

// EnsureIndexes creates the index listing queries rely on.
func (c *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ends_at", Value: 1}, {Key: "starts_at", Value: 1}},
	})
	return err
}

// UpsertEvent stores doc unless a newer version of the same event is already
// present, so redelivered or reordered messages never roll the copy back.
func (c *CatalogRepository) UpsertEvent(ctx context.Context, doc EventDoc) error {
	doc.UpdatedAt = time.Now().UTC()
	filter := bson.M{"_id": doc.ID, "version": bson.M{"$lte": doc.Version}}
	_, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// a newer version exists; the filter missed and the upsert collided
		return nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("event_id", doc.ID).Error("failed to upsert catalog event")
		return err
	}
	return nil
}

func (c *CatalogRepository) DeleteEvent(ctx context.Context, id string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		c.logger.WithError(err).WithField("event_id", id).Error("failed to delete catalog event")
	}
	return err
}

func (c *CatalogRepository) GetEvent(ctx context.Context, id string) (*EventDoc, error) {
	var doc EventDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListUpcoming returns events that have not ended at now, soonest first.
func (c *CatalogRepository) ListUpcoming(ctx context.Context, now time.Time, limit, offset int) ([]EventDoc, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cur, err := c.coll.Find(ctx, bson.M{"ends_at": bson.M{"$gt": now}}, opts)
	if err != nil {
		return nil, err
	}
	docs := []EventDoc{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
