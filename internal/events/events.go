// Package events defines the document events carried on the Redis stream
// between the API and the worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	DocumentCreated = "document.created"
	DocumentStored  = "document.stored"
	DocumentDeleted = "document.deleted"
)

type Event struct {
	Type        string `json:"type"`
	DocumentID  string `json:"documentId"`
	Title       string `json:"title,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Actor       string `json:"actor,omitempty"`
}

// Values flattens the event into stream fields.
func (e Event) Values() map[string]any {
	values := map[string]any{
		"type":       e.Type,
		"documentId": e.DocumentID,
	}
	for k, v := range map[string]string{
		"title":       e.Title,
		"visibility":  e.Visibility,
		"filePath":    e.FilePath,
		"contentType": e.ContentType,
		"actor":       e.Actor,
	} {
		if v != "" {
			values[k] = v
		}
	}
	return values
}

// Decode reads an event back from stream fields.
func Decode(values map[string]interface{}) (Event, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Event{}, err
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" || e.DocumentID == "" {
		return Event{}, fmt.Errorf("event missing type or document id")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: e.Values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
