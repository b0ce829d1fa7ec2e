// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// outboxBucket holds one JSON record per delivered message, keyed by Message-ID.
var outboxBucket = []byte("outbox")

// OutboxTransport "delivers" mail into a local bbolt file. It is the
// development transport: verification codes can be read back without a
// mail provider.
type OutboxTransport struct {
	db *bolt.DB
}

// OutboxRecord is a stored message.
type OutboxRecord struct {
	Message
	DeliveredAt time.Time `json:"delivered_at"`
}

// NewOutboxTransport opens (or creates) the outbox file at path.
func NewOutboxTransport(path string) (*OutboxTransport, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outboxBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox: failed to create bucket: %w", err)
	}

	return &OutboxTransport{db: db}, nil
}

// Send stores message. Re-sending the same Message-ID overwrites the record.
func (transport *OutboxTransport) Send(context context.Context, message Message) error {
	if err := context.Err(); err != nil {
		return err
	}

	record, err := json.Marshal(OutboxRecord{Message: message, DeliveredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("outbox: encode: %w", err)
	}

	return transport.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(outboxBucket).Put([]byte(message.MessageID), record)
	})
}

// List returns every stored message addressed to recipient, or all of them
// when recipient is empty.
func (transport *OutboxTransport) List(recipient string) ([]OutboxRecord, error) {
	records := make([]OutboxRecord, 0)

	err := transport.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(outboxBucket).ForEach(func(_, value []byte) error {
			var record OutboxRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			if recipient == "" || record.To == recipient {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: list: %w", err)
	}
	return records, nil
}

// Close releases the file lock.
func (transport *OutboxTransport) Close() error {
	return transport.db.Close()
}
