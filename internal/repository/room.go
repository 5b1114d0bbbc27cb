package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/goban-live/goban-backend/internal/apperror"
	"github.com/goban-live/goban-backend/internal/entity"
)

// activeRoomsKey indexes joinable rooms by creation time so the
// listing endpoint can read them newest-first.
const activeRoomsKey = "rooms:active"

type RoomRepository interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	ActiveRooms(ctx context.Context) ([]*entity.Room, error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) CreateOrUpdate(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	roomKey := "room:" + room.ID
	if err = that.client.Set(ctx, roomKey, roomJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	if room.IsWaiting() || room.IsInProgress() {
		member := redis.Z{Score: float64(room.CreatedAt.UnixMilli()), Member: room.ID}
		if err = that.client.ZAdd(ctx, activeRoomsKey, member).Err(); err != nil {
			return fmt.Errorf("failed to index active room: %w", err)
		}
	} else {
		if err = that.client.ZRem(ctx, activeRoomsKey, room.ID).Err(); err != nil {
			return fmt.Errorf("failed to unindex room: %w", err)
		}
	}

	return nil
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	roomKey := "room:" + id

	response, err := that.client.Get(ctx, roomKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		// A row we cannot decode is treated as absent for this request.
		return nil, fmt.Errorf("%w: malformed stored room: %v", apperror.ErrRoomNotFound, err)
	}

	return &room, nil
}

func (that *dbRoom) ActiveRooms(ctx context.Context) ([]*entity.Room, error) {
	ids, err := that.client.ZRevRange(ctx, activeRoomsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	rooms := make([]*entity.Room, 0, len(ids))
	for _, id := range ids {
		room, err := that.GetByID(ctx, id)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if room.IsWaiting() || room.IsInProgress() {
			rooms = append(rooms, room)
		}
	}

	return rooms, nil
}
