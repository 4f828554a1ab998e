package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"campus-fleet-backend/internal/broker"
	"campus-fleet-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Размер буфера исходящих событий одного соединения. Наблюдатель, не
// успевающий вычитывать буфер, теряет события — это best-effort доставка
const sendBufferSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Разрешаем подключения с любых источников
	},
}

// inboundMessage входящее сообщение наблюдательского протокола
type inboundMessage struct {
	Type      string `json:"type"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

// client одно соединение наблюдателя. Писатель у соединения ровно один —
// горутина writePump, читающая буферизованный канал send
type client struct {
	conn   *websocket.Conn
	connID string
	send   chan broker.Event
	done   chan struct{}
}

// Send кладет событие в буфер соединения без блокировки. Возвращает false,
// если буфер полон — рассылающая сторона при этом не ждет
func (c *client) Send(event broker.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// writePump единственный писатель в соединение: сериализует события из
// буфера в сокет, пока соединение не закрыто
func (c *client) writePump() {
	for {
		select {
		case event := <-c.send:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Ошибка кодирования события для соединения %s: %v", c.connID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Ошибка отправки события соединению %s: %v", c.connID, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Handler обрабатывает подключения WebSocket наблюдателей
func Handler(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Проверяем, что это действительно запрос на установление WebSocket соединения
		if c.GetHeader("Upgrade") != "websocket" {
			c.String(http.StatusBadRequest, "Требуется WebSocket соединение")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения до WebSocket: %v", err)
			return
		}

		connID := c.Query("client_id")
		if connID == "" {
			connID = uuid.NewString()
		}

		cl := &client{
			conn:   conn,
			connID: connID,
			send:   make(chan broker.Event, sendBufferSize),
			done:   make(chan struct{}),
		}

		middleware.TrackWSConnection(1)
		log.Printf("WebSocket соединение установлено: %s", connID)

		go cl.writePump()
		go readLoop(cl, b)
	}
}

// readLoop читает входящие сообщения соединения до его закрытия.
// При любом завершении все подписки соединения снимаются одной операцией
func readLoop(cl *client, b *broker.Broker) {
	defer func() {
		b.Disconnect(cl.connID)
		close(cl.done)
		cl.conn.Close()
		middleware.TrackWSConnection(-1)
		log.Printf("WebSocket соединение закрыто: %s", cl.connID)
	}()

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Ошибка разбора сообщения от %s: %v", cl.connID, err)
			continue
		}

		switch msg.Type {
		case "join":
			if err := b.Join(cl.connID, cl, msg.VehicleID); err != nil {
				cl.Send(broker.Event{
					Type:    "ERROR",
					Payload: gin.H{"vehicle_id": msg.VehicleID, "error": "автобус не найден"},
				})
			}
		case "leave":
			b.Leave(cl.connID, msg.VehicleID)
		case "ping":
			cl.Send(broker.Event{
				Type:    "pong",
				Payload: gin.H{"time": time.Now().Unix()},
			})
		default:
			log.Printf("Неизвестный тип сообщения от %s: %s", cl.connID, msg.Type)
		}
	}
}
