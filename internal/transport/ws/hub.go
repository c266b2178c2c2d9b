package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgQuestionChanged     MessageType = "question_changed"
	MsgFinalizationReached MessageType = "finalization_reached"
	MsgInterviewTerminated MessageType = "interview_terminated"
	MsgInterviewCompleted  MessageType = "interview_completed"
	MsgError               MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages the form UI subscriptions per quiz. Every connection bound to
// a quiz receives that form session's navigation events.
type Hub struct {
	conns map[int64]map[string]*Connection // quizID -> sessionID -> conn

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents one form UI subscription
type Connection struct {
	QuizID    int64
	SessionID string
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message to broadcast to a quiz's subscribers
type BroadcastMessage struct {
	QuizID  int64
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[int64]map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.QuizID] == nil {
				h.conns[conn.QuizID] = make(map[string]*Connection)
			}
			h.conns[conn.QuizID][conn.SessionID] = conn
			log.Printf("Form session %s subscribed to quiz %d", conn.SessionID, conn.QuizID)
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if sessions, ok := h.conns[conn.QuizID]; ok {
				if existing, ok := sessions[conn.SessionID]; ok && existing == conn {
					delete(sessions, conn.SessionID)
					close(conn.Send)
					log.Printf("Form session %s unsubscribed from quiz %d", conn.SessionID, conn.QuizID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)
			if sessions, ok := h.conns[msg.QuizID]; ok {
				for _, conn := range sessions {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToForm sends a navigation event to every subscriber of the quiz
// (implements service.Broadcaster)
func (h *Hub) BroadcastToForm(quizID int64, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		QuizID: quizID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}
