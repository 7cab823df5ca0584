package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/webcli/webcli/pkg/events"
)

const (
	// wsPingInterval is how often the literal "ping" text frame goes out.
	wsPingInterval = 20 * time.Second

	// wsPopTimeout bounds each wait on the subscriber queue so the loop can
	// notice a closed connection and a due ping.
	wsPopTimeout = time.Second

	wsWriteTimeout = 10 * time.Second
)

// wsHello is the first frame a client must send.
type wsHello struct {
	ClientID string `json:"client_id"`
	ThreadID int64  `json:"thread_id"`
}

// wsHandler handles GET /api/ws. The client identifies itself with one JSON
// frame, then receives thread notifications as JSON text frames until it
// disconnects.
func (s *Server) wsHandler(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := c.Request().Context()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	_, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		return nil
	}

	var hello wsHello
	if err := json.Unmarshal(data, &hello); err != nil || hello.ClientID == "" || hello.ThreadID == 0 {
		_ = conn.Close(websocket.StatusPolicyViolation, "Client ID or Thread ID not provided")
		return nil
	}

	topic := events.TopicForThread(hello.ThreadID)
	queue := s.bus.Subscribe(topic, hello.ClientID)
	defer s.bus.Unsubscribe(topic, hello.ClientID)

	log := slog.With("client_id", hello.ClientID, "thread_id", hello.ThreadID)
	log.Info("Live session started")
	defer log.Info("Live session closed")

	// Reads are drained so the connection close is noticed promptly; clients
	// are not expected to send anything after the hello frame.
	connClosed := make(chan struct{})
	go func() {
		defer close(connClosed)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	lastPing := time.Now()
	for {
		select {
		case <-connClosed:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if time.Since(lastPing) >= wsPingInterval {
			if err := s.wsWrite(ctx, conn, []byte("ping")); err != nil {
				return nil
			}
			lastPing = time.Now()
		}

		event, ok := queue.Pop(wsPopTimeout)
		if !ok {
			continue
		}
		payload, err := json.Marshal(event)
		if err != nil {
			log.Warn("Failed to marshal notification", "error", err)
			continue
		}
		if err := s.wsWrite(ctx, conn, payload); err != nil {
			return nil
		}
	}
}

func (s *Server) wsWrite(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
