package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pastpapers/internal/domain"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StatusSource answers the current state of a payment.
type StatusSource interface {
	Status(ctx context.Context, checkoutRequestID string) (*service.PaymentStatus, error)
}

// UpgradePaymentWS streams the status of one M-Pesa payment. The client gets a
// snapshot on connect and one settled event, after which the server closes.
func UpgradePaymentWS(hub *Hub, payments StatusSource, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("checkoutRequestId")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		client := NewClient(id)
		hub.Register(client)
		defer client.Close()

		st, err := payments.Status(c.Request.Context(), id)
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			_ = conn.WriteJSON(gin.H{"error": "payment not found"})
			return
		case err != nil:
			log.Error("load payment status for websocket", zap.String("checkout_request_id", id), zap.Error(err))
			_ = conn.WriteJSON(gin.H{"error": "could not load payment status"})
			return
		}
		if err := conn.WriteJSON(Event{Type: EventPaymentStatus, Payment: st}); err != nil {
			return
		}
		if st.Status != domain.MpesaStatusPending {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		go readPump(conn, client)
		writePump(client, conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames; a read error means the peer went away.
func readPump(conn *websocket.Conn, c *Client) {
	defer c.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
