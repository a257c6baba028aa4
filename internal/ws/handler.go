package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/game"
	"github.com/mottyeytan/HeadToHead/internal/question"
	"github.com/mottyeytan/HeadToHead/internal/room"
	"github.com/mottyeytan/HeadToHead/internal/types"
)

// Gateway turns websocket frames into registry/session calls and session
// output back into broadcasts. All payload validation happens here; the
// engine only ever sees well-formed requests.
type Gateway struct {
	hub           *Hub
	registry      *room.Registry
	store         *game.Store
	questions     *question.Service
	questionCount int
	log           *zap.Logger
}

func NewGateway(hub *Hub, registry *room.Registry, store *game.Store, questions *question.Service, questionCount int, log *zap.Logger) *Gateway {
	if questionCount <= 0 {
		questionCount = engine.DefaultQuestionCount
	}
	return &Gateway{
		hub:           hub,
		registry:      registry,
		store:         store,
		questions:     questions,
		questionCount: questionCount,
		log:           log,
	}
}

// Handler accepts one websocket connection and runs its read loop until the
// client goes away.
func (gw *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := gw.hub.Register(connID)
		defer gw.disconnect(connID)

		gw.log.Info("connection opened", zap.String("conn", connID))

		// Writer goroutine: drains the outbox until the hub closes it.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					gw.log.Debug("read failed", zap.String("conn", connID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				gw.hub.Send(connID, errMsg(types.EvtRoomError, "bad json"))
				continue
			}
			gw.dispatch(connID, cm)
		}
	}
}

func (gw *Gateway) dispatch(connID string, cm types.ClientMessage) {
	if cm.RoomID == "" {
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "missing roomId"))
		return
	}

	switch cm.Type {
	case types.MsgJoinRoom:
		gw.joinRoom(connID, cm)
	case types.MsgLeaveRoom:
		gw.leaveRoom(connID, cm.RoomID)
	case types.MsgStartGame:
		gw.startGame(connID, cm)
	case types.MsgSubmitAnswer:
		if sess, ok := gw.store.Get(cm.RoomID); ok {
			sess.Submit(connID, cm.Answer)
		}
	case types.MsgPlayerReady:
		if sess, ok := gw.store.Get(cm.RoomID); ok {
			sess.Ready(connID)
		}
	case types.MsgLeaveGame:
		gw.hub.LeaveRoom(cm.RoomID, connID)
		if sess, ok := gw.store.Get(cm.RoomID); ok {
			sess.Leave(connID)
		}
	case types.MsgGetGameState:
		gw.sendGameState(connID, cm.RoomID)
	default:
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "unknown message type"))
	}
}

func (gw *Gateway) joinRoom(connID string, cm types.ClientMessage) {
	rm, err := gw.registry.Join(cm.RoomID, connID, cm.PlayerName)
	switch {
	case errors.Is(err, room.ErrEmptyName):
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "player name is required"))
		return
	case errors.Is(err, room.ErrNameTaken):
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "that name is already taken in this room"))
		return
	case errors.Is(err, room.ErrRoomStarted):
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "the game in this room has already started"))
		return
	case err != nil:
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "could not join room"))
		return
	}

	gw.hub.JoinRoom(cm.RoomID, connID)
	gw.broadcastPlayers(rm)
	gw.log.Info("player joined room",
		zap.String("room", cm.RoomID),
		zap.String("player", cm.PlayerName),
		zap.Int("members", len(rm.Members)))
}

func (gw *Gateway) leaveRoom(connID, roomID string) {
	rm, remains := gw.registry.Leave(roomID, connID)
	gw.hub.LeaveRoom(roomID, connID)
	if remains {
		gw.broadcastPlayers(rm)
	}
}

func (gw *Gateway) startGame(connID string, cm types.ClientMessage) {
	rm, ok := gw.registry.Get(cm.RoomID)
	if !ok {
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "room not found"))
		return
	}
	if rm.Status != room.StatusWaiting {
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "the game has already started"))
		return
	}
	if len(rm.Members) < engine.MinPlayers {
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "need at least 2 players to start"))
		return
	}
	// Only the host may start the round.
	if rm.HostID != connID {
		gw.hub.Send(connID, errMsg(types.EvtRoomError, "only the host can start the game"))
		return
	}

	category := cm.Category
	if category == "" {
		category = question.CategoryRandom
	}
	questions, err := gw.questions.Draw(category, gw.questionCount)
	if err != nil {
		gw.hub.Send(connID, errMsg(types.EvtGameError, "unknown category"))
		return
	}

	seeds := make([]engine.Seed, 0, len(rm.Members))
	for _, m := range rm.Members {
		seeds = append(seeds, engine.Seed{ID: m.ID, Name: m.Name})
	}

	sess, err := gw.store.Create(cm.RoomID, seeds, questions)
	if err != nil {
		gw.hub.Send(connID, errMsg(types.EvtGameError, "could not create game"))
		return
	}

	gw.registry.SetStatus(cm.RoomID, room.StatusStarted)
	sess.Start()
}

func (gw *Gateway) sendGameState(connID, roomID string) {
	sess, ok := gw.store.Get(roomID)
	if !ok {
		gw.hub.Send(connID, types.ServerMessage{Type: types.EvtGameState, Payload: types.GameState{Exists: false}})
		return
	}
	st, ok := sess.State()
	if !ok {
		st = types.GameState{Exists: false}
	}
	gw.hub.Send(connID, types.ServerMessage{Type: types.EvtGameState, Payload: st})
}

// disconnect cleans up after an abrupt close: every in-flight game first,
// then every lobby. Sessions are notified through the store rather than via
// lobby membership, because a player who sent room:leave mid-game is gone
// from the registry but still present in the game.
func (gw *Gateway) disconnect(connID string) {
	gw.hub.Unregister(connID)
	gw.store.LeaveAll(connID)

	for _, dep := range gw.registry.RemoveFromAllRooms(connID) {
		if dep.Remains {
			gw.broadcastPlayers(dep.Room)
		}
	}
	gw.log.Info("connection closed", zap.String("conn", connID))
}

func (gw *Gateway) broadcastPlayers(rm room.Room) {
	players := make([]types.PlayerView, 0, len(rm.Members))
	for _, m := range rm.Members {
		players = append(players, types.PlayerView{ID: m.ID, Name: m.Name, Score: m.Score})
	}
	gw.hub.Broadcast(rm.ID, types.ServerMessage{Type: types.EvtPlayersUpdated, Payload: types.PlayersUpdated{
		RoomID:  rm.ID,
		Players: players,
	}})
}

func errMsg(event, message string) types.ServerMessage {
	if event == types.EvtGameError {
		return types.ServerMessage{Type: event, Payload: types.GameError{Message: message}}
	}
	return types.ServerMessage{Type: event, Payload: types.RoomError{Message: message}}
}
