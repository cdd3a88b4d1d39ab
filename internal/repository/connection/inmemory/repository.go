// Package inmemory tracks live websocket connections and their room
// subscriptions. The subscription set is transport-level state, deliberately
// separate from the room registry's member map: actions are validated against
// both, since the two can diverge during leave races.
package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/repository/connection"
)

type repo struct {
	logger *slog.Logger

	mu       sync.RWMutex
	connList map[*websocket.Conn]string
	idList   map[string]*websocket.Conn
	subList  map[*websocket.Conn]string
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		logger:   logger,
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*websocket.Conn),
		subList:  make(map[*websocket.Conn]string),
	}
}

func (r *repo) Add(conn *websocket.Conn, connectionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connList[conn] != "" || r.idList[connectionId] != nil {
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = connectionId
	r.idList[connectionId] = conn

	r.logger.Debug("connection added", "connection_id", connectionId)
	return nil
}

// RemoveByConn forgets the connection and its subscription, returning the
// connection id it carried. Closing the socket is the caller's business.
func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connectionId, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, connectionId)
	delete(r.subList, conn)

	r.logger.Debug("connection removed", "connection_id", connectionId)
	return connectionId, nil
}

func (r *repo) GetConnectionId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionId, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return connectionId, nil
}

// Subscribe binds the connection to a room, replacing any previous binding:
// a connection belongs to at most one room.
func (r *repo) Subscribe(conn *websocket.Conn, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connList[conn]; !ok {
		return connection.ErrNotFound
	}

	r.subList[conn] = roomId
	return nil
}

func (r *repo) Unsubscribe(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subList[conn]; !ok {
		return connection.ErrNotFound
	}

	delete(r.subList, conn)
	return nil
}

func (r *repo) GetSubscription(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.subList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return roomId, nil
}

func (r *repo) GetConnsByRoomId(roomId string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.subList))
	for conn, subscribed := range r.subList {
		if subscribed == roomId {
			conns = append(conns, conn)
		}
	}

	return conns
}
