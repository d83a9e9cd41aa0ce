// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the chat collections.
type Client struct {
	client *mongo.Client

	// db is the "chat_db" database; collections ("public_messages",
	// "private_messages") are accessed through it.
	db *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping verifies the connection actually works.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("chat_db"),
	}, nil
}

// PublicMessages returns the public room message collection.
func (c *Client) PublicMessages() *mongo.Collection {
	return c.db.Collection("public_messages")
}

// PrivateMessages returns the private message collection.
func (c *Client) PrivateMessages() *mongo.Collection {
	return c.db.Collection("private_messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes backing history and backlog queries.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// Public history is always read in sent_at order.
	publicIndex := mongo.IndexModel{
		Keys: map[string]int{"sent_at": 1},
	}
	if _, err := c.PublicMessages().Indexes().CreateOne(ctx, publicIndex); err != nil {
		return fmt.Errorf("failed to create public message index: %w", err)
	}

	privateIndexes := []mongo.IndexModel{
		{
			// Backlog fetch: undelivered messages for a recipient, in order.
			Keys: map[string]int{"receiver_username": 1, "delivered": 1, "sent_at": 1},
		},
		{
			Keys: map[string]int{"sent_at": 1},
		},
	}
	if _, err := c.PrivateMessages().Indexes().CreateMany(ctx, privateIndexes); err != nil {
		return fmt.Errorf("failed to create private message indexes: %w", err)
	}

	return nil
}
