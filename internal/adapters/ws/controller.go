package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/songbooklive/songbook/internal/app"
	"github.com/songbooklive/songbook/internal/config"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the socket endpoint: it upgrades HTTP requests, registers
// the connection, and runs the read/write pumps plus the heartbeat.
type Controller struct {
	Dispatcher *app.Dispatcher
	Conns      *app.ConnectionRegistry
	Cfg        *config.Config
}

func NewController(d *app.Dispatcher, conns *app.ConnectionRegistry, cfg *config.Config) *Controller {
	return &Controller{Dispatcher: d, Conns: conns, Cfg: cfg}
}

func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}
	log.Info().Str("module", "adapters.ws").Str("remote", socket.RemoteAddr().String()).Msg("client connected")

	conn := newWSConn(socket)
	ctl.Conns.Add(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, conn)
}

// writePump is the only goroutine writing to the socket. It also drives the
// heartbeat: a ping per period, force-close after too many unanswered ones.
func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if int(c.misses.Add(1)) > ctl.Cfg.HeartbeatThreshold {
				log.Warn().Str("module", "adapters.ws").Msg("client missed too many pings, disconnecting")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump feeds inbound frames to the dispatcher. Closing the socket only
// unbinds the connection; session membership survives for a later rebind.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Msg("client disconnected")
		ctl.Conns.Remove(c)
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	c.conn.SetPongHandler(func(string) error {
		c.misses.Store(0)
		ctl.Dispatcher.HandlePong(c)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				log.Warn().Str("module", "adapters.ws").Msg("non-binary frame, disconnecting client")
				return
			}
			ctl.Dispatcher.HandleFrame(c, data)
		}
	}
}
