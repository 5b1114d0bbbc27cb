package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goban-live/goban-backend/internal/apperror"
	"github.com/goban-live/goban-backend/internal/entity"
	"github.com/goban-live/goban-backend/internal/goban"
)

// fakeRoomRepo stores rooms as JSON so every load returns an
// independent copy, the way a real store would.
type fakeRoomRepo struct {
	rooms    map[string][]byte
	failSave error
	failLoad error
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string][]byte)}
}

func (that *fakeRoomRepo) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	if that.failSave != nil {
		return that.failSave
	}

	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	that.rooms[room.ID] = raw

	return nil
}

func (that *fakeRoomRepo) GetByID(_ context.Context, id string) (*entity.Room, error) {
	if that.failLoad != nil {
		return nil, that.failLoad
	}

	raw, ok := that.rooms[id]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	room := &entity.Room{}
	if err := json.Unmarshal(raw, room); err != nil {
		return nil, err
	}

	return room, nil
}

func (that *fakeRoomRepo) ActiveRooms(_ context.Context) ([]*entity.Room, error) {
	rooms := make([]*entity.Room, 0, len(that.rooms))
	for id := range that.rooms {
		room, err := that.GetByID(context.Background(), id)
		if err != nil {
			return nil, err
		}
		if room.IsWaiting() || room.IsInProgress() {
			rooms = append(rooms, room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})

	return rooms, nil
}

// mustGet loads a room straight from the fake store.
func (that *fakeRoomRepo) mustGet(t *testing.T, id string) *entity.Room {
	t.Helper()

	room, err := that.GetByID(context.Background(), id)
	require.NoError(t, err)

	return room
}

type fakeChatRepo struct {
	messages   []*entity.ChatMessage
	failAppend error
}

func (that *fakeChatRepo) Append(_ context.Context, message *entity.ChatMessage) error {
	if that.failAppend != nil {
		return that.failAppend
	}

	that.messages = append(that.messages, message)

	return nil
}

func (that *fakeChatRepo) History(_ context.Context, roomID string, limit int) ([]*entity.ChatMessage, error) {
	var history []*entity.ChatMessage
	for _, message := range that.messages {
		if message.RoomID == roomID {
			history = append(history, message)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	return history, nil
}

// emittedEvent is one delivery recorded by the fake broadcaster. Target
// is the room id for broadcasts and the connection id for private
// events.
type emittedEvent struct {
	Private bool
	Target  string
	Event   string
	Payload any
}

type fakeBroadcaster struct {
	events []emittedEvent
}

func (that *fakeBroadcaster) EmitToRoom(roomID, event string, payload any) {
	that.events = append(that.events, emittedEvent{Target: roomID, Event: event, Payload: payload})
}

func (that *fakeBroadcaster) EmitToConnection(connID, event string, payload any) {
	that.events = append(that.events, emittedEvent{Private: true, Target: connID, Event: event, Payload: payload})
}

// lastEvent returns the most recent delivery of the given event, or nil.
func (that *fakeBroadcaster) lastEvent(event string) *emittedEvent {
	for i := len(that.events) - 1; i >= 0; i-- {
		if that.events[i].Event == event {
			return &that.events[i]
		}
	}
	return nil
}

func newTestService() (*RoomService, *fakeRoomRepo, *fakeChatRepo, *fakeBroadcaster) {
	rooms := newFakeRoomRepo()
	chat := &fakeChatRepo{}
	fabric := &fakeBroadcaster{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRoomService(logger, rooms, chat, fabric), rooms, chat, fabric
}

// startGame joins two connections so the room is in progress with
// conn-1 as Black and conn-2 as White.
func startGame(t *testing.T, svc *RoomService, roomID string) {
	t.Helper()

	require.NoError(t, svc.Join(context.Background(), roomID, "conn-1"))
	require.NoError(t, svc.Join(context.Background(), roomID, "conn-2"))
}

func TestRoomService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("First join creates the room and waits for an opponent", func(t *testing.T) {
		// Given: an empty store
		svc, rooms, _, fabric := newTestService()

		// When: a connection joins an unknown room
		err := svc.Join(ctx, "room-1", "conn-1")

		// Then: the room is created, seated and broadcast
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusWaiting, room.Status)
		assert.Equal(t, entity.MsgWaitingForOpponent, room.Message)
		assert.Len(t, room.Players, 1)

		state := fabric.lastEvent(EventGameState)
		require.NotNil(t, state)
		assert.False(t, state.Private)
		assert.Equal(t, "room-1", state.Target)
	})

	t.Run("Second join starts the game", func(t *testing.T) {
		// Given: a room with one seated player
		svc, rooms, _, fabric := newTestService()
		require.NoError(t, svc.Join(ctx, "room-1", "conn-1"))

		// When: a second connection joins
		err := svc.Join(ctx, "room-1", "conn-2")

		// Then: the game begins with Black to move
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusInProgress, room.Status)
		assert.Equal(t, entity.MsgGameOn, room.Message)
		assert.Equal(t, goban.PlayerBlack, room.CurrentPlayer)
		assert.Len(t, room.Players, 2)

		state := fabric.lastEvent(EventGameState)
		require.NotNil(t, state)
		view, ok := state.Payload.(*entity.Room)
		require.True(t, ok)
		assert.Equal(t, entity.StatusInProgress, view.Status)
	})

	t.Run("Third join spectates without changing the seats", func(t *testing.T) {
		// Given: a full room
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")

		// When: a third connection joins
		err := svc.Join(ctx, "room-1", "conn-3")

		// Then: the seats are untouched and state is still broadcast
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Len(t, room.Players, 2)
		assert.Nil(t, room.SeatOf("conn-3"))
		require.NotNil(t, fabric.lastEvent(EventGameState))
	})

	t.Run("Join replays chat history privately", func(t *testing.T) {
		// Given: a room with an existing chat log
		svc, _, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.SendChat(ctx, "room-1", "conn-1", "hello"))

		// When: a late connection joins
		err := svc.Join(ctx, "room-1", "conn-3")

		// Then: the history goes only to the joining connection
		require.NoError(t, err)

		history := fabric.lastEvent(EventChatHistory)
		require.NotNil(t, history)
		assert.True(t, history.Private)
		assert.Equal(t, "conn-3", history.Target)
	})
}

func TestRoomService_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid move places the stone and rotates the turn", func(t *testing.T) {
		// Given: a game in progress with Black to move
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")

		// When: Black plays (3,3)
		err := svc.MakeMove(ctx, "room-1", "conn-1", 3, 3)

		// Then: the stone is on the board and it is White's turn
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.PlayerBlack, room.Board[3][3])
		assert.Equal(t, goban.PlayerWhite, room.CurrentPlayer)
		assert.Equal(t, "Player White's turn.", room.Message)
		assert.NotNil(t, room.BoardBeforeOpponentMove)

		// And: the broadcast view does not carry the snapshot
		state := fabric.lastEvent(EventGameState)
		require.NotNil(t, state)
		view, ok := state.Payload.(*entity.Room)
		require.True(t, ok)
		assert.Nil(t, view.BoardBeforeOpponentMove)
	})

	t.Run("Capture updates the mover's counter and the message", func(t *testing.T) {
		// Given: a game where White's stone at (0,0) has one liberty left
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")

		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 1, 0)) // Black
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-2", 0, 0)) // White into the corner
		// When: Black takes the corner stone
		err := svc.MakeMove(ctx, "room-1", "conn-1", 0, 1)

		// Then: the capture is credited to Black
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.Empty, room.Board[0][0])
		assert.Equal(t, 1, room.CapturedByBlack)
		assert.Equal(t, "1 stone(s) captured! Player White's turn.", room.Message)
	})

	t.Run("Single-stone capture opens a ko that clears after an intervening move", func(t *testing.T) {
		// Given: a classic ko built move by move; Black walls (5,5),
		// White walls (6,5), then Black plays into White's jaws
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")

		moves := []struct {
			conn string
			x, y int
		}{
			{"conn-1", 5, 4},
			{"conn-2", 6, 4},
			{"conn-1", 4, 5},
			{"conn-2", 7, 5},
			{"conn-1", 5, 6},
			{"conn-2", 6, 6},
			{"conn-1", 6, 5},
		}
		for _, move := range moves {
			require.NoError(t, svc.MakeMove(ctx, "room-1", move.conn, move.x, move.y))
		}

		// When: White takes the ko at (5,5)
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-2", 5, 5))

		// Then: the captured point becomes the ko point
		room := rooms.mustGet(t, "room-1")
		require.NotNil(t, room.KoPoint)
		assert.Equal(t, goban.Coordinate{X: 6, Y: 5}, *room.KoPoint)
		assert.Equal(t, 1, room.CapturedByWhite)

		// And: Black cannot recapture immediately
		err := svc.MakeMove(ctx, "room-1", "conn-1", 6, 5)
		assert.ErrorIs(t, err, apperror.ErrKoViolation)

		room = rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.PlayerWhite, room.Board[5][5])
		require.NotNil(t, room.KoPoint)

		// And: any other move lifts the ko
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 0, 0))
		room = rooms.mustGet(t, "room-1")
		assert.Nil(t, room.KoPoint)

		// And: after the exchange the recapture is legal
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-2", 1, 1))
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 6, 5))

		room = rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.Empty, room.Board[5][5])
		assert.Equal(t, goban.PlayerBlack, room.Board[5][6])
		assert.Equal(t, 1, room.CapturedByBlack)
	})

	t.Run("Out-of-turn move is rejected privately and changes nothing", func(t *testing.T) {
		// Given: a game in progress with Black to move
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")

		// When: White tries to move first
		err := svc.MakeMove(ctx, "room-1", "conn-2", 3, 3)

		// Then: the move is rejected to the actor only
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

		rejection := fabric.lastEvent(EventInvalidMove)
		require.NotNil(t, rejection)
		assert.True(t, rejection.Private)
		assert.Equal(t, "conn-2", rejection.Target)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.Empty, room.Board[3][3])
		assert.Equal(t, goban.PlayerBlack, room.CurrentPlayer)
	})

	t.Run("Spectator cannot move", func(t *testing.T) {
		// Given: a game with a spectator watching
		svc, _, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.Join(ctx, "room-1", "conn-3"))

		// When: the spectator tries to move
		err := svc.MakeMove(ctx, "room-1", "conn-3", 3, 3)

		// Then: the action is rejected as not a seat
		assert.ErrorIs(t, err, apperror.ErrNotASeat)
		require.NotNil(t, fabric.lastEvent(EventInvalidMove))
	})

	t.Run("Move before the game starts is rejected", func(t *testing.T) {
		// Given: a room with a single player
		svc, _, _, _ := newTestService()
		require.NoError(t, svc.Join(ctx, "room-1", "conn-1"))

		// When: the lone player tries to move
		err := svc.MakeMove(ctx, "room-1", "conn-1", 3, 3)

		// Then: the game has not started
		assert.ErrorIs(t, err, apperror.ErrGameNotInProgress)
	})

	t.Run("Illegal placement reports the rule violation", func(t *testing.T) {
		// Given: a game where (3,3) is already occupied
		svc, _, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 3, 3))

		// When: White plays the same point
		err := svc.MakeMove(ctx, "room-1", "conn-2", 3, 3)

		// Then: the rejection names the occupied point
		assert.ErrorIs(t, err, apperror.ErrOccupied)

		rejection := fabric.lastEvent(EventInvalidMove)
		require.NotNil(t, rejection)
		assert.Equal(t, "conn-2", rejection.Target)
	})

	t.Run("Persistence failure surfaces as a generic server error", func(t *testing.T) {
		// Given: a game whose store refuses writes
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		rooms.failSave = assert.AnError

		// When: Black plays a legal move
		err := svc.MakeMove(ctx, "room-1", "conn-1", 3, 3)

		// Then: the actor gets a generic error, not the raw failure
		require.Error(t, err)

		event := fabric.lastEvent(EventError)
		require.NotNil(t, event)
		assert.True(t, event.Private)
		payload, ok := event.Payload.(ErrorPayload)
		require.True(t, ok)
		assert.Equal(t, "a server error occurred", payload.Message)
	})
}

func TestRoomService_PassTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("A pass rotates the turn and announces it", func(t *testing.T) {
		// Given: a game in progress with Black to move
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")

		// When: Black passes
		err := svc.PassTurn(ctx, "room-1", "conn-1")

		// Then: White is to move and the pass is counted
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, goban.PlayerWhite, room.CurrentPlayer)
		assert.Equal(t, 1, room.ConsecutivePasses)
		assert.Equal(t, "Player Black passed. Player White's turn.", room.Message)
		assert.False(t, room.IsGameOver)
	})

	t.Run("Two consecutive passes end the game", func(t *testing.T) {
		// Given: a game where Black just passed
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-1"))

		// When: White passes as well
		err := svc.PassTurn(ctx, "room-1", "conn-2")

		// Then: the game is over
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.True(t, room.IsGameOver)
		assert.Equal(t, entity.StatusFinished, room.Status)
		assert.Equal(t, entity.MsgGameOver, room.Message)
	})

	t.Run("A move between passes resets the pass count", func(t *testing.T) {
		// Given: Black passed, then White played a stone
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-1"))
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-2", 5, 5))

		// When: Black passes again
		err := svc.PassTurn(ctx, "room-1", "conn-1")

		// Then: the game continues, the streak restarted at one
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.False(t, room.IsGameOver)
		assert.Equal(t, 1, room.ConsecutivePasses)
	})

	t.Run("Actions after the game is over are rejected", func(t *testing.T) {
		// Given: a finished game
		svc, _, _, _ := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-1"))
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-2"))

		// When: Black tries to keep playing
		err := svc.MakeMove(ctx, "room-1", "conn-1", 3, 3)

		// Then: the game is already over
		assert.ErrorIs(t, err, apperror.ErrGameAlreadyOver)
	})
}

func TestRoomService_ResetGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Reset clears the game but keeps both seats", func(t *testing.T) {
		// Given: a finished game with stones on the board
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 3, 3))
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-2"))
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-1"))

		// When: resetting the room
		err := svc.ResetGame(ctx, "room-1", "conn-1")

		// Then: a fresh game starts with the same players
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusInProgress, room.Status)
		assert.Equal(t, goban.Empty, room.Board[3][3])
		assert.Equal(t, goban.PlayerBlack, room.CurrentPlayer)
		assert.False(t, room.IsGameOver)
		assert.Len(t, room.Players, 2)

		require.NotNil(t, fabric.lastEvent(EventGameState))
	})

	t.Run("Reset on an unknown room reports room not found", func(t *testing.T) {
		// Given: an empty store
		svc, _, _, fabric := newTestService()

		// When: resetting a room that does not exist
		err := svc.ResetGame(ctx, "missing", "conn-1")

		// Then: the actor is told the room is unknown
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)

		event := fabric.lastEvent(EventError)
		require.NotNil(t, event)
		assert.True(t, event.Private)
	})
}

func TestRoomService_SendChat(t *testing.T) {
	ctx := context.Background()

	t.Run("Seated player's message is stored and relayed", func(t *testing.T) {
		// Given: a game in progress
		svc, _, chat, fabric := newTestService()
		startGame(t, svc, "room-1")

		// When: the first player chats
		err := svc.SendChat(ctx, "room-1", "conn-1", "  good game  ")

		// Then: the trimmed message is appended and broadcast
		require.NoError(t, err)

		require.Len(t, chat.messages, 1)
		assert.Equal(t, "good game", chat.messages[0].Text)
		assert.Equal(t, "Player 1", chat.messages[0].SenderName)

		event := fabric.lastEvent(EventNewChat)
		require.NotNil(t, event)
		assert.False(t, event.Private)
		assert.Equal(t, "room-1", event.Target)
	})

	t.Run("Spectator chats under a spectator name", func(t *testing.T) {
		// Given: a game with a spectator watching
		svc, _, chat, _ := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.Join(ctx, "room-1", "spectator-conn"))

		// When: the spectator chats
		err := svc.SendChat(ctx, "room-1", "spectator-conn", "nice move")

		// Then: the sender name is derived from the connection id
		require.NoError(t, err)

		require.Len(t, chat.messages, 1)
		assert.Equal(t, "Spectator (spect)", chat.messages[0].SenderName)
	})

	t.Run("Blank message is rejected", func(t *testing.T) {
		// Given: a game in progress
		svc, _, chat, fabric := newTestService()
		startGame(t, svc, "room-1")

		// When: sending whitespace only
		err := svc.SendChat(ctx, "room-1", "conn-1", "   ")

		// Then: nothing is stored and the actor is told privately
		assert.ErrorIs(t, err, apperror.ErrEmptyChatMessage)
		assert.Empty(t, chat.messages)

		event := fabric.lastEvent(EventError)
		require.NotNil(t, event)
		assert.True(t, event.Private)
		assert.Equal(t, "conn-1", event.Target)
	})
}

func TestRoomService_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Player leaving mid-game pauses it without losing the board", func(t *testing.T) {
		// Given: a game in progress with a stone played
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.MakeMove(ctx, "room-1", "conn-1", 3, 3))

		// When: White disconnects
		err := svc.Disconnect(ctx, "conn-2")

		// Then: the room waits for a new player with the board intact
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusWaiting, room.Status)
		assert.Equal(t, goban.PlayerBlack, room.Board[3][3])
		assert.Equal(t, goban.PlayerBlack, room.CurrentPlayer)
		assert.Zero(t, room.ConsecutivePasses)
		assert.Nil(t, room.KoPoint)
		assert.Nil(t, room.BoardBeforeOpponentMove)
		assert.Len(t, room.Players, 1)
		assert.Contains(t, room.Message, "has left the game")

		left := fabric.lastEvent(EventPlayerLeft)
		require.NotNil(t, left)
		payload, ok := left.Payload.(PlayerLeftPayload)
		require.True(t, ok)
		assert.Equal(t, "conn-2", payload.ConnectionID)
		assert.Equal(t, 2, payload.Seat)

		require.NotNil(t, fabric.lastEvent(EventGameState))
	})

	t.Run("Last player leaving aborts the room", func(t *testing.T) {
		// Given: a game in progress
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")

		// When: both players disconnect
		require.NoError(t, svc.Disconnect(ctx, "conn-2"))
		err := svc.Disconnect(ctx, "conn-1")

		// Then: the room is aborted
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusAborted, room.Status)
		assert.Empty(t, room.Players)
		assert.Equal(t, "All players have left. The game is empty.", room.Message)
	})

	t.Run("Finished game keeps its status when a player leaves", func(t *testing.T) {
		// Given: a finished game
		svc, rooms, _, _ := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-1"))
		require.NoError(t, svc.PassTurn(ctx, "room-1", "conn-2"))

		// When: a player disconnects
		err := svc.Disconnect(ctx, "conn-2")

		// Then: the result stands
		require.NoError(t, err)

		room := rooms.mustGet(t, "room-1")
		assert.Equal(t, entity.StatusFinished, room.Status)
	})

	t.Run("Spectator disconnect leaves the room untouched", func(t *testing.T) {
		// Given: a game with a spectator
		svc, rooms, _, fabric := newTestService()
		startGame(t, svc, "room-1")
		require.NoError(t, svc.Join(ctx, "room-1", "conn-3"))
		before := len(fabric.events)

		// When: the spectator disconnects
		err := svc.Disconnect(ctx, "conn-3")

		// Then: no events fire and the seats remain
		require.NoError(t, err)
		assert.Len(t, fabric.events, before)

		room := rooms.mustGet(t, "room-1")
		assert.Len(t, room.Players, 2)
		assert.Equal(t, entity.StatusInProgress, room.Status)
	})

	t.Run("Unknown connection disconnect is a no-op", func(t *testing.T) {
		// Given: an empty service
		svc, _, _, fabric := newTestService()

		// When: a never-seen connection disconnects
		err := svc.Disconnect(ctx, "ghost")

		// Then: nothing happens
		require.NoError(t, err)
		assert.Empty(t, fabric.events)
	})
}

func TestRoomService_ActiveRooms(t *testing.T) {
	ctx := context.Background()

	t.Run("Lists waiting and in-progress rooms only", func(t *testing.T) {
		// Given: a waiting room, a running room and an aborted room
		svc, _, _, _ := newTestService()
		require.NoError(t, svc.Join(ctx, "waiting", "conn-a"))
		startGame(t, svc, "running")
		require.NoError(t, svc.Join(ctx, "dead", "conn-z"))
		require.NoError(t, svc.Disconnect(ctx, "conn-z"))

		// When: listing active rooms
		rooms, err := svc.ActiveRooms(ctx)

		// Then: the aborted room is excluded
		require.NoError(t, err)
		require.Len(t, rooms, 2)

		ids := []string{rooms[0].ID, rooms[1].ID}
		assert.Contains(t, ids, "waiting")
		assert.Contains(t, ids, "running")
	})
}
