package ws

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/rs/zerolog/log"
)

type ConnCtx struct {
	Pins []string
}

// Server delivers session events to socket.io clients. A client receives
// events for a pin once it has emitted join-game with that pin.
type Server struct {
	RM *game.Registry
	io *socketio.Server
}

func New(rm *game.Registry) *Server {
	return &Server{RM: rm}
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "join-game", func(s socketio.Conn, pin string) {
		s.Join(pin)
		if ctx, ok := s.Context().(*ConnCtx); ok {
			ctx.Pins = append(ctx.Pins, pin)
		}
		log.Info().Str("sid", s.ID()).Str("pin", pin).Msg("join-game")
	})

	io.OnEvent("/", "leave-game", func(s socketio.Conn, pin string) {
		s.Leave(pin)
		log.Info().Str("sid", s.ID()).Str("pin", pin).Msg("leave-game")
	})

	for _, name := range []string{game.EventShowAnswers, game.EventShowRanking, game.EventShowEndRound} {
		io.OnEvent("/", name, func(s socketio.Conn, pin string) map[string]any {
			if _, err := srv.RM.Announce(pin, name); err != nil {
				return srv.err(s, err)
			}
			log.Info().Str("sid", s.ID()).Str("pin", pin).Msg(name)
			return map[string]any{"ok": true}
		})
	}

	io.OnError("/", func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok {
			for _, pin := range ctx.Pins {
				s.Leave(pin)
			}
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	return io
}

// Deliver broadcasts evt to the socket.io room named after its pin.
func (srv *Server) Deliver(_ context.Context, evt game.Event) error {
	if srv.io == nil {
		return errors.New("socket.io server not mounted")
	}
	srv.io.BroadcastToRoom("/", evt.Pin, evt.Name, evt.Payload)
	return nil
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	code := "bad_request"
	if errors.Is(err, game.ErrSessionNotFound) {
		code = "session_not_found"
	}
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": err.Error()}
}
