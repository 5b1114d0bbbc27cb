package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/goban-live/goban-backend/internal/entity"
)

type ChatRepository interface {
	Append(ctx context.Context, message *entity.ChatMessage) error
	History(ctx context.Context, roomID string, limit int) ([]*entity.ChatMessage, error)
}

type dbChat struct {
	client *redis.Client
}

func NewChatRepository(client *redis.Client) ChatRepository {
	return &dbChat{
		client: client,
	}
}

// Append pushes the message onto the room's log. The log is
// append-only: entries are never updated or removed.
func (that *dbChat) Append(ctx context.Context, message *entity.ChatMessage) error {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("could not marshal chat message: %w", err)
	}

	chatKey := "chat:" + message.RoomID
	if err = that.client.RPush(ctx, chatKey, messageJSON).Err(); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}

// History returns up to limit most recent messages, oldest first.
func (that *dbChat) History(ctx context.Context, roomID string, limit int) ([]*entity.ChatMessage, error) {
	chatKey := "chat:" + roomID

	entries, err := that.client.LRange(ctx, chatKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	messages := make([]*entity.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var message entity.ChatMessage
		if err = json.Unmarshal([]byte(entry), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		messages = append(messages, &message)
	}

	return messages, nil
}
