package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Session is one connected trainer and the environment it drives.
type Session struct {
	ID          string
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix timestamp

	conn      *websocket.Conn
	env       *sim.Environment
	hasReset  bool
	closeOnce sync.Once
}

func (s *Session) close() {
	s.closeOnce.Do(func() { _ = s.conn.Close() })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authorize(r); err != nil {
		s.logger.Warn("Rejected client", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if atomic.AddInt64(&s.clientCount, 1) > int64(s.config.MaxClients) {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt64(&s.clientCount, -1)

	id := uuid.NewString()
	env, err := s.factory(id)
	if err != nil {
		s.logger.Error("Failed to create environment", log.Error(err))
		http.Error(w, "environment unavailable", http.StatusInternalServerError)
		return
	}
	defer env.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", log.Error(err))
		return
	}

	session := &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now().Unix(),
		conn:        conn,
		env:         env,
	}
	s.sessions.Store(id, session)
	defer s.sessions.Delete(id)
	defer session.close()

	s.logger.Info("Client connected",
		log.String("session", id),
		log.String("remote_addr", r.RemoteAddr),
		log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	s.serveSession(session)

	s.logger.Info("Client disconnected",
		log.String("session", id),
		log.Uint64("episodes", env.Controller().Episode()))
}

func (s *Server) serveSession(session *Session) {
	logger := s.logger.With(log.String("session", session.ID))
	session.conn.SetReadLimit(s.config.MaxMessageSize)

	for {
		var req Request
		if err := session.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Read failed", log.Error(err))
			}
			return
		}
		atomic.StoreInt64(&session.LastSeen, time.Now().Unix())

		resp := s.handleRequest(session, req)
		if resp.Error != "" {
			logger.Debug("Request failed", log.String("op", req.Op), log.String("error", resp.Error))
		}

		_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := session.conn.WriteJSON(resp); err != nil {
			logger.Debug("Write failed", log.Error(err))
			return
		}
	}
}

func (s *Server) handleRequest(session *Session, req Request) Response {
	resp := Response{Op: req.Op, Session: session.ID}
	env := session.env

	switch req.Op {
	case OpReset:
		obs := env.Reset()
		session.hasReset = true
		resp.Observation, resp.Info = wireObservation(obs), wireInfo(s.status(env))

	case OpStep:
		if !session.hasReset {
			resp.Error = ErrResetRequired.Error()
			return resp
		}
		if len(req.Action) != 2 {
			resp.Error = fmt.Errorf("%w: action needs 2 branches, got %d", ErrInvalidMessage, len(req.Action)).Error()
			return resp
		}
		res, err := env.Step(agent.ActionFromVector(req.Action))
		resp.Observation, resp.Info = wireObservation(res.Observation), wireInfo(res.Info)
		resp.Reward, resp.Done, resp.Truncated = res.Reward, res.Done, res.Truncated
		if err != nil {
			resp.Error = err.Error()
		}

	case OpStatus:
		resp.Observation, resp.Info = wireObservation(env.Observe()), wireInfo(s.status(env))
		resp.Done = env.Controller().IsDone()
		resp.Truncated = env.Truncated()

	default:
		resp.Error = fmt.Errorf("%w: %q", ErrUnknownOp, req.Op).Error()
	}
	return resp
}

func (s *Server) status(env *sim.Environment) sim.Info {
	c := env.Controller()
	return sim.Info{
		Episode:       c.Episode(),
		Step:          env.Ticks(),
		Elapsed:       env.Elapsed(),
		EpisodeReward: c.EpisodeReward(),
		Outcome:       c.Outcome(),
	}
}
