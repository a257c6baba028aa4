package room

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrEmptyName = errors.New("player name is empty")
var ErrNameTaken = errors.New("player name already taken in this room")
var ErrRoomStarted = errors.New("room is not accepting new players")

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
)

// Member is one lobby participant. ID is the connection id.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Room is the pre-game lobby for one session id. Members keep join order;
// the first member is host unless the host left and the next-oldest was
// promoted.
type Room struct {
	ID        string    `json:"id"`
	HostID    string    `json:"hostId"`
	Members   []Member  `json:"players"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// snapshot detaches a copy from the live room. Returned Rooms must never
// alias the registry's backing arrays; callers iterate them outside the lock.
func (rm *Room) snapshot() Room {
	out := *rm
	out.Members = append([]Member(nil), rm.Members...)
	return out
}

// Registry tracks lobby membership for every room. A room with zero members
// is deleted, never retained empty. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds a connection to a room, creating the room on first join. The
// first joiner becomes host. Rejoining with the same connection id is a
// no-op returning current state. New players are only admitted while the
// room is waiting. Names must be non-empty after trimming and unique within
// the room, case-insensitive.
func (r *Registry) Join(roomID, connID, name string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &Room{
			ID:        roomID,
			Status:    StatusWaiting,
			CreatedAt: now,
		}
		r.rooms[roomID] = rm
	}

	for _, m := range rm.Members {
		if m.ID == connID {
			return rm.snapshot(), nil
		}
	}
	if rm.Status != StatusWaiting {
		return Room{}, ErrRoomStarted
	}
	for _, m := range rm.Members {
		if strings.EqualFold(m.Name, name) {
			return Room{}, ErrNameTaken
		}
	}

	rm.Members = append(rm.Members, Member{ID: connID, Name: name})
	if rm.HostID == "" {
		rm.HostID = connID
	}
	rm.UpdatedAt = now
	return rm.snapshot(), nil
}

// Leave removes a connection from a room. A departing host hands off to the
// oldest remaining member; an emptied room is deleted. The second return is
// false when the room no longer exists.
func (r *Registry) Leave(roomID, connID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(roomID, connID)
}

func (r *Registry) leaveLocked(roomID, connID string) (Room, bool) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}

	kept := rm.Members[:0]
	for _, m := range rm.Members {
		if m.ID != connID {
			kept = append(kept, m)
		}
	}
	rm.Members = kept
	rm.UpdatedAt = time.Now()

	if len(rm.Members) == 0 {
		delete(r.rooms, roomID)
		return Room{}, false
	}
	if rm.HostID == connID {
		rm.HostID = rm.Members[0].ID
	}
	return rm.snapshot(), true
}

// Get returns a snapshot of the room, if it exists.
func (r *Registry) Get(roomID string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return rm.snapshot(), true
}

// SetStatus updates the room's lifecycle status.
func (r *Registry) SetStatus(roomID string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[roomID]; ok {
		rm.Status = status
		rm.UpdatedAt = time.Now()
	}
}

// Departure reports one room a disconnecting player was removed from.
// Remains is false when the removal emptied (deleted) the room.
type Departure struct {
	RoomID  string
	Room    Room
	Remains bool
}

// RemoveFromAllRooms applies Leave to every room containing the connection,
// for abrupt disconnects. All affected rooms are returned for broadcast.
func (r *Registry) RemoveFromAllRooms(connID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Departure
	for roomID, rm := range r.rooms {
		present := false
		for _, m := range rm.Members {
			if m.ID == connID {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		updated, remains := r.leaveLocked(roomID, connID)
		out = append(out, Departure{RoomID: roomID, Room: updated, Remains: remains})
	}
	return out
}
