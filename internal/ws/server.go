// Package ws provides WebSocket server functionality for chess clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/config"
	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/hub"
	"github.com/Feddakalkun/chess-platform/internal/protocol"
	"github.com/Feddakalkun/chess-platform/internal/service"
)

// requestTimeout bounds a single request, policy evaluation included.
const requestTimeout = 5 * time.Second

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.OriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return nil
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)
	s.logger.Info("client connected", zap.String("conn_id", conn.ID), zap.String("remote", c.RealIP()))

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection. Requests from one
// connection are handled in arrival order.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		s.service.Disconnect(context.Background(), conn.ID)
		conn.Close()
		s.logger.Info("client disconnected", zap.String("conn_id", conn.ID))
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("failed to write message", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendCodeError(conn, baseMsg, domain.CodeInvalidMessage, "invalid JSON message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch baseMsg.Type {
	case protocol.TypeCreateGame:
		s.handleCreateGame(ctx, conn, data)
	case protocol.TypeJoinGame:
		s.handleJoinGame(ctx, conn, data)
	case protocol.TypeMakeMove:
		s.handleMakeMove(ctx, conn, data)
	case protocol.TypeResign:
		s.reply(conn, baseMsg, s.service.Resign(ctx, baseMsg.SessionID, conn.ID))
	case protocol.TypeOfferDraw:
		s.reply(conn, baseMsg, s.service.OfferDraw(ctx, baseMsg.SessionID, conn.ID))
	case protocol.TypeAcceptDraw:
		s.reply(conn, baseMsg, s.service.AcceptDraw(ctx, baseMsg.SessionID, conn.ID))
	case protocol.TypeDeclineDraw:
		s.reply(conn, baseMsg, s.service.DeclineDraw(ctx, baseMsg.SessionID, conn.ID))
	case protocol.TypeGetGameState:
		s.handleGetGameState(ctx, conn, baseMsg)
	default:
		s.sendCodeError(conn, baseMsg, domain.CodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

func (s *Server) handleCreateGame(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg protocol.CreateGameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendCodeError(conn, msg.BaseMessage, domain.CodeInvalidMessage, "invalid create_game message")
		return
	}

	res, err := s.service.CreateGame(ctx, conn.ID, msg.PlayerName, msg.Config)
	if err != nil {
		s.sendError(conn, msg.BaseMessage, err)
		return
	}

	s.hub.SendJSONToConnection(conn, protocol.GameCreatedMessage{
		BaseMessage:   msg.Reply(protocol.TypeGameCreated, res.SessionID),
		Side:          res.Side,
		Config:        res.Config,
		StartPosition: res.StartPosition,
	})
}

func (s *Server) handleJoinGame(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg protocol.JoinGameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendCodeError(conn, msg.BaseMessage, domain.CodeInvalidMessage, "invalid join_game message")
		return
	}

	res, err := s.service.JoinGame(ctx, msg.SessionID, conn.ID, msg.PlayerName)
	if err != nil {
		s.sendError(conn, msg.BaseMessage, err)
		return
	}

	s.hub.SendJSONToConnection(conn, protocol.GameJoinedMessage{
		BaseMessage: msg.Reply(protocol.TypeGameJoined, ""),
		Role:        res.Role,
		State:       res.State,
	})
}

func (s *Server) handleMakeMove(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg protocol.MakeMoveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendCodeError(conn, msg.BaseMessage, domain.CodeInvalidMessage, "invalid make_move message")
		return
	}
	mv, err := protocol.DecodeMove(msg.Move)
	if err != nil {
		s.sendCodeError(conn, msg.BaseMessage, domain.CodeInvalidMessage, err.Error())
		return
	}

	res, err := s.service.SubmitMove(ctx, msg.SessionID, conn.ID, mv)
	if err != nil {
		s.sendError(conn, msg.BaseMessage, err)
		return
	}

	s.hub.SendJSONToConnection(conn, protocol.MoveAcceptedMessage{
		BaseMessage: msg.Reply(protocol.TypeMoveAccepted, ""),
		Move:        res.Move,
		FEN:         res.FEN,
		Turn:        res.Turn,
		Clocks:      res.Clocks,
		Ply:         res.Ply,
		GameOver:    res.GameOver,
		Result:      res.Result,
	})
}

func (s *Server) handleGetGameState(ctx context.Context, conn *hub.Connection, msg protocol.BaseMessage) {
	snap, err := s.service.Snapshot(ctx, msg.SessionID)
	if err != nil {
		s.sendError(conn, msg, err)
		return
	}
	s.hub.SendJSONToConnection(conn, protocol.GameStateMessage{
		BaseMessage: msg.Reply(protocol.TypeGameState, ""),
		State:       *snap,
	})
}

// reply acknowledges a request whose effects are delivered as events.
func (s *Server) reply(conn *hub.Connection, msg protocol.BaseMessage, err error) {
	if err != nil {
		s.sendError(conn, msg, err)
		return
	}
	s.hub.SendJSONToConnection(conn, protocol.AckMessage{BaseMessage: msg.Reply(protocol.TypeAck, "")})
}

// sendError sends an error message for err to a connection.
func (s *Server) sendError(conn *hub.Connection, req protocol.BaseMessage, err error) {
	code := domain.CodeOf(err)
	message := err.Error()
	if code == domain.CodeInternal {
		s.logger.Error("request failed",
			zap.String("conn_id", conn.ID),
			zap.String("type", req.Type),
			zap.String("game_id", req.SessionID),
			zap.Error(err))
		message = "internal error"
	}
	s.sendCodeError(conn, req, code, message)
}

func (s *Server) sendCodeError(conn *hub.Connection, req protocol.BaseMessage, code domain.ErrorCode, message string) {
	s.hub.SendJSONToConnection(conn, protocol.ErrorMessage{
		BaseMessage: req.Reply(protocol.TypeError, ""),
		Code:        string(code),
		Message:     message,
	})
}
