package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PublicMessage maps to the public_messages collection. Public messages have
// no recipient and are considered delivered on broadcast.
type PublicMessage struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Username  string        `bson:"username"`
	Body      string        `bson:"message"`
	SentAt    time.Time     `bson:"sent_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

// PrivateMessage maps to the private_messages collection. Delivered is false
// while the message waits in the recipient's offline backlog.
type PrivateMessage struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Sender    string        `bson:"sender_username"`
	Recipient string        `bson:"receiver_username"`
	Body      string        `bson:"message"`
	SentAt    time.Time     `bson:"sent_at"`
	Delivered bool          `bson:"delivered"`
	CreatedAt time.Time     `bson:"created_at"`
}
