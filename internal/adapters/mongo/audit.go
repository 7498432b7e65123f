package mongo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/robertarktes/venue-ticketing/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	ActorID   string    `bson:"actor_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

// LogMessage records one published domain message. messageID doubles as the
// document id, so a redelivered message is stored once.
func (a *AuditLogger) LogMessage(ctx context.Context, messageID uuid.UUID, action string, actor *uuid.UUID, payload []byte) error {
	var data bson.M
	if err := json.Unmarshal(payload, &data); err != nil {
		return err
	}
	log := AuditLog{
		ID:        messageID.String(),
		Action:    action,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if actor != nil {
		log.ActorID = actor.String()
	}
	_, err := a.coll.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit log")
		return err
	}
	return nil
}
