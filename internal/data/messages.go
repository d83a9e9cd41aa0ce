// Package data provides DB models and stores.
package data

import (
	"context"
	"time"

	"github.com/SuperJunier666/Chatroom/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations for both the public
// room and private conversations.
type MessagesStore struct {
	public  *mongo.Collection
	private *mongo.Collection
}

// NewMessagesStore returns a MessagesStore over the given collections.
func NewMessagesStore(public, private *mongo.Collection) *MessagesStore {
	return &MessagesStore{public: public, private: private}
}

// AppendPublic inserts a public room message and returns its timestamp.
func (m *MessagesStore) AppendPublic(ctx context.Context, username, body string) (time.Time, error) {
	now := time.Now()
	msg := &PublicMessage{
		Username:  normalize.Username(username),
		Body:      body,
		SentAt:    now,
		CreatedAt: now,
	}
	if _, err := m.public.InsertOne(ctx, msg); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// AppendPrivate inserts a private message. The delivered flag records whether
// the recipient had a live connection at send time; undelivered messages wait
// in the backlog until the recipient next joins.
func (m *MessagesStore) AppendPrivate(ctx context.Context, sender, recipient, body string, delivered bool) (time.Time, error) {
	now := time.Now()
	msg := &PrivateMessage{
		Sender:    normalize.Username(sender),
		Recipient: normalize.Username(recipient),
		Body:      body,
		SentAt:    now,
		Delivered: delivered,
		CreatedAt: now,
	}
	if _, err := m.private.InsertOne(ctx, msg); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// FetchUndelivered returns the recipient's backlog of undelivered private
// messages, oldest first.
func (m *MessagesStore) FetchUndelivered(ctx context.Context, recipient string) ([]*PrivateMessage, error) {
	filter := bson.M{
		"receiver_username": normalize.Username(recipient),
		"delivered":         false,
	}
	opts := options.Find().SetSort(bson.M{"sent_at": 1})

	cursor, err := m.private.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*PrivateMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkDelivered flags every undelivered private message for the recipient as
// delivered. Called once the backlog has been replayed, so a message is never
// replayed on a subsequent join.
func (m *MessagesStore) MarkDelivered(ctx context.Context, recipient string) error {
	filter := bson.M{
		"receiver_username": normalize.Username(recipient),
		"delivered":         false,
	}
	update := bson.M{"$set": bson.M{"delivered": true}}

	_, err := m.private.UpdateMany(ctx, filter, update)
	return err
}

// ListPublicHistory returns the most recent public messages in chronological
// order (oldest first). A non-positive limit returns everything.
func (m *MessagesStore) ListPublicHistory(ctx context.Context, limit int64) ([]*PublicMessage, error) {
	// Query newest-first with the limit applied, then reverse so callers
	// always see chronological order.
	opts := options.Find().SetSort(bson.M{"sent_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := m.public.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*PublicMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
