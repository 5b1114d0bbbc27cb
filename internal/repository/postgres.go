package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/goban-live/goban-backend/internal/apperror"
	"github.com/goban-live/goban-backend/internal/entity"
	"github.com/goban-live/goban-backend/internal/goban"
)

// gormRoom is the rooms table row. Board, players, ko point and the
// retained snapshot are JSON-encoded text columns; the gateway owns
// round-trip fidelity.
type gormRoom struct {
	ID                      string `gorm:"primaryKey"`
	BoardState              string
	Players                 string
	CurrentPlayer           int
	Status                  string `gorm:"index"`
	GameMessage             string
	KoPoint                 string
	BoardStateBeforeOppMove string
	CapturedByBlack         int
	CapturedByWhite         int
	ConsecutivePasses       int
	IsGameOver              bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (gormRoom) TableName() string { return "rooms" }

type gormChatMessage struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RoomID     string `gorm:"index"`
	SenderID   string
	SenderName string
	Text       string
	Timestamp  time.Time
}

func (gormChatMessage) TableName() string { return "chat_messages" }

type pgRoom struct {
	db *gorm.DB
}

// NewPostgresRoomRepository migrates the rooms table and returns a
// RoomRepository backed by it.
func NewPostgresRoomRepository(db *gorm.DB) (RoomRepository, error) {
	if err := db.AutoMigrate(&gormRoom{}); err != nil {
		return nil, fmt.Errorf("failed to migrate rooms table: %w", err)
	}

	return &pgRoom{db: db}, nil
}

func (that *pgRoom) CreateOrUpdate(ctx context.Context, room *entity.Room) error {
	row, err := toRow(room)
	if err != nil {
		return err
	}

	if err = that.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}

	return nil
}

func (that *pgRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	var row gormRoom

	err := that.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	room, err := fromRow(&row)
	if err != nil {
		// A row we cannot decode is treated as absent for this request.
		return nil, fmt.Errorf("%w: malformed stored room: %v", apperror.ErrRoomNotFound, err)
	}

	return room, nil
}

func (that *pgRoom) ActiveRooms(ctx context.Context) ([]*entity.Room, error) {
	var rows []gormRoom

	err := that.db.WithContext(ctx).
		Where("status IN ?", []string{entity.StatusWaiting, entity.StatusInProgress}).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	rooms := make([]*entity.Room, 0, len(rows))
	for i := range rows {
		room, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

type pgChat struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) (ChatRepository, error) {
	if err := db.AutoMigrate(&gormChatMessage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate chat_messages table: %w", err)
	}

	return &pgChat{db: db}, nil
}

func (that *pgChat) Append(ctx context.Context, message *entity.ChatMessage) error {
	row := gormChatMessage{
		RoomID:     message.RoomID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Text:       message.Text,
		Timestamp:  message.Timestamp,
	}

	if err := that.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}

func (that *pgChat) History(ctx context.Context, roomID string, limit int) ([]*entity.ChatMessage, error) {
	var rows []gormChatMessage

	err := that.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	return chatMessagesFromRows(rows), nil
}

// chatMessagesFromRows reverses a newest-first row batch into the
// oldest-first order the history carries.
func chatMessagesFromRows(rows []gormChatMessage) []*entity.ChatMessage {
	messages := make([]*entity.ChatMessage, len(rows))
	for i := range rows {
		row := rows[len(rows)-1-i]
		messages[i] = &entity.ChatMessage{
			RoomID:     row.RoomID,
			SenderID:   row.SenderID,
			SenderName: row.SenderName,
			Text:       row.Text,
			Timestamp:  row.Timestamp,
		}
	}

	return messages
}

func toRow(room *entity.Room) (*gormRoom, error) {
	boardJSON, err := json.Marshal(room.Board)
	if err != nil {
		return nil, fmt.Errorf("could not marshal board: %w", err)
	}

	playersJSON, err := json.Marshal(room.Players)
	if err != nil {
		return nil, fmt.Errorf("could not marshal players: %w", err)
	}

	koJSON := ""
	if room.KoPoint != nil {
		raw, err := json.Marshal(room.KoPoint)
		if err != nil {
			return nil, fmt.Errorf("could not marshal ko point: %w", err)
		}
		koJSON = string(raw)
	}

	snapshotJSON := ""
	if room.BoardBeforeOpponentMove != nil {
		raw, err := json.Marshal(room.BoardBeforeOpponentMove)
		if err != nil {
			return nil, fmt.Errorf("could not marshal board snapshot: %w", err)
		}
		snapshotJSON = string(raw)
	}

	return &gormRoom{
		ID:                      room.ID,
		BoardState:              string(boardJSON),
		Players:                 string(playersJSON),
		CurrentPlayer:           room.CurrentPlayer,
		Status:                  room.Status,
		GameMessage:             room.Message,
		KoPoint:                 koJSON,
		BoardStateBeforeOppMove: snapshotJSON,
		CapturedByBlack:         room.CapturedByBlack,
		CapturedByWhite:         room.CapturedByWhite,
		ConsecutivePasses:       room.ConsecutivePasses,
		IsGameOver:              room.IsGameOver,
		CreatedAt:               room.CreatedAt,
	}, nil
}

func fromRow(row *gormRoom) (*entity.Room, error) {
	room := &entity.Room{
		ID:                row.ID,
		CurrentPlayer:     row.CurrentPlayer,
		Status:            row.Status,
		Message:           row.GameMessage,
		CapturedByBlack:   row.CapturedByBlack,
		CapturedByWhite:   row.CapturedByWhite,
		ConsecutivePasses: row.ConsecutivePasses,
		IsGameOver:        row.IsGameOver,
		CreatedAt:         row.CreatedAt,
	}

	if err := json.Unmarshal([]byte(row.BoardState), &room.Board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	if err := json.Unmarshal([]byte(row.Players), &room.Players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal players: %w", err)
	}

	if row.KoPoint != "" {
		var ko goban.Coordinate
		if err := json.Unmarshal([]byte(row.KoPoint), &ko); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ko point: %w", err)
		}
		room.KoPoint = &ko
	}

	if row.BoardStateBeforeOppMove != "" {
		if err := json.Unmarshal([]byte(row.BoardStateBeforeOppMove), &room.BoardBeforeOpponentMove); err != nil {
			return nil, fmt.Errorf("failed to unmarshal board snapshot: %w", err)
		}
	}

	return room, nil
}
