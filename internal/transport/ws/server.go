// Package ws streams simulation progress to websocket observers. The
// stream is one-way: a client attaches, receives a WELCOME with the
// current snapshot, then one STEP message per advanced week. Client
// messages other than pings are ignored.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"endowsim/internal/protocol"
)

// WelcomeSource supplies the attach payload for a new subscriber.
type WelcomeSource func() protocol.WelcomeMsg

type subscriber struct {
	id  string
	out chan []byte
}

type Server struct {
	welcome WelcomeSource
	log     *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]*subscriber
}

func NewServer(welcome WelcomeSource, logger *log.Logger) *Server {
	return &Server{
		welcome: welcome,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[string]*subscriber),
	}
}

// Broadcast queues a STEP message to every attached subscriber. Slow
// subscribers are dropped rather than allowed to stall the run.
func (s *Server) Broadcast(msg protocol.StepMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("ws: marshal step: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		select {
		case sub.out <- b:
		default:
			s.log.Printf("ws: subscriber %s lagging, dropping", id)
			close(sub.out)
			delete(s.subs, id)
		}
	}
}

func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := &subscriber{
			id:  uuid.NewString(),
			out: make(chan []byte, 64),
		}

		welcome := s.welcome()
		welcome.Type = protocol.TypeWelcome
		welcome.ProtocolVersion = protocol.Version
		welcome.SessionID = sub.id
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		s.mu.Lock()
		s.subs[sub.id] = sub
		s.mu.Unlock()
		defer s.detach(sub.id)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sub.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: only keeps the connection liveness-checked.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.out)
		delete(s.subs, id)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
