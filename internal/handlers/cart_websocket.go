package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

type CartSubscriber interface {
	Subscribe(ctx context.Context, userID string) (*cache.CartSubscription, error)
}

type CartReader interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
}

// CartWebSocket pushes the user's cart every time another request changes it.
type CartWebSocket struct {
	carts    CartReader
	events   CartSubscriber
	upgrader websocket.Upgrader
}

func NewCartWebSocket(carts CartReader, events CartSubscriber, allowedOrigins []string) *CartWebSocket {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &CartWebSocket{
		carts:  carts,
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

type cartMessage struct {
	Type string `json:"type"`
	cartResponse
}

// GET /api/cart/ws
func (h *CartWebSocket) Serve(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	log := logger.FromContext(c.Request.Context(), nil).With(zap.String("user_id", uid))

	// the subscription outlives the upgrade handshake, so detach it from request cancellation
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sub, err := h.events.Subscribe(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.push(ctx, conn, uid, "connected"); err != nil {
		log.Debug("websocket write failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case change, ok := <-sub.C:
			if !ok {
				return
			}
			if change != cache.CartUpdated && change != cache.CartCleared {
				continue
			}
			if err := h.push(ctx, conn, uid, "cart_"+change); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *CartWebSocket) push(ctx context.Context, conn *websocket.Conn, uid, typ string) error {
	cart, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(cartMessage{Type: typ, cartResponse: newCartResponse(cart)})
}
