// Package memory is an in-process store used in development and tests. It
// assigns message ids and timestamps the same way the SQL stores do.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dkeye/roomgate/internal/domain"
	"github.com/jonboulle/clockwork"
)

type Store struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	users    map[domain.UserID]domain.User
	channels map[domain.ChannelID]domain.Channel
	members  map[domain.ServerID]map[domain.UserID]struct{}
	messages []domain.Message
	lastID   domain.MessageID
}

func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		users:    make(map[domain.UserID]domain.User),
		channels: make(map[domain.ChannelID]domain.Channel),
		members:  make(map[domain.ServerID]map[domain.UserID]struct{}),
	}
}

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddChannel(c domain.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
}

func (s *Store) AddServerMember(serverID domain.ServerID, userID domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.members[serverID]
	if set == nil {
		set = make(map[domain.UserID]struct{})
		s.members[serverID] = set
	}
	set[userID] = struct{}{}
}

// SetLastMessageID makes the next persisted message get id+1.
func (s *Store) SetLastMessageID(id domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID = id
}

func (s *Store) GetChannel(_ context.Context, id domain.ChannelID) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[id]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return &c, nil
}

func (s *Store) IsServerMember(_ context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[serverID][userID]
	return ok, nil
}

func (s *Store) CreateMessage(_ context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	m := domain.Message{
		ID:        s.lastID,
		ChannelID: draft.ChannelID,
		AuthorID:  draft.AuthorID,
		Content:   draft.Content,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// Messages returns the persisted messages of a channel in id order.
func (s *Store) Messages(channelID domain.ChannelID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Users    []domain.User    `json:"users"`
	Channels []domain.Channel `json:"channels"`
	Members  []struct {
		ServerID domain.ServerID `json:"serverId"`
		UserID   domain.UserID   `json:"userId"`
	} `json:"members"`
}

// LoadSeed populates the store from a JSON seed document.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	for _, u := range seed.Users {
		s.AddUser(u)
	}
	for _, c := range seed.Channels {
		s.AddChannel(c)
	}
	for _, m := range seed.Members {
		s.AddServerMember(m.ServerID, m.UserID)
	}
	return nil
}
