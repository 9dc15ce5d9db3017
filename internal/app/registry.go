package app

import (
	"cmp"
	"errors"
	"hash/maphash"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("connection already registered")
)

const topicShards = 32

type topicMember struct {
	session core.MemberSession
	seq     uint64
}

// topicShard guards the member sets of every topic hashed to it.
type topicShard struct {
	mu     sync.RWMutex
	topics map[domain.Topic]map[core.ConnID]topicMember
}

// connEntry is the reverse index for one connection. Its mutex is always
// taken before any shard mutex.
type connEntry struct {
	mu      sync.Mutex
	session core.MemberSession
	topics  map[domain.Topic]struct{}
	closed  bool
}

// Registry is the single source of truth for admitted connections and their
// topic memberships. Membership reads and writes lock only the topic's shard;
// the connection table doubles as the signaling routing table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.ConnID]*connEntry

	shards [topicShards]topicShard
	seed   maphash.Seed
	seq    atomic.Uint64
}

func NewRegistry() *Registry {
	r := &Registry{
		sessions: make(map[core.ConnID]*connEntry),
		seed:     maphash.MakeSeed(),
	}
	for i := range r.shards {
		r.shards[i].topics = make(map[domain.Topic]map[core.ConnID]topicMember)
	}
	return r
}

func (r *Registry) shard(t domain.Topic) *topicShard {
	return &r.shards[maphash.Comparable(r.seed, t)%topicShards]
}

func (r *Registry) entry(id core.ConnID) *connEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Register admits an authenticated session.
func (r *Registry) Register(sess core.MemberSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sess.ID()]; ok {
		return ErrDuplicateConnection
	}
	r.sessions[sess.ID()] = &connEntry{
		session: sess,
		topics:  make(map[domain.Topic]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn", string(sess.ID())).Str("user", sess.UserID().String()).Msg("registered session")
	return nil
}

// Lookup resolves a connection for point-to-point delivery.
func (r *Registry) Lookup(id core.ConnID) (core.MemberSession, bool) {
	e := r.entry(id)
	if e == nil {
		return nil, false
	}
	return e.session, true
}

// Join adds the pair if absent. It reports whether membership changed.
func (r *Registry) Join(id core.ConnID, t domain.Topic) (bool, error) {
	e := r.entry(id)
	if e == nil {
		return false, ErrUnknownConnection
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrUnknownConnection
	}
	if _, ok := e.topics[t]; ok {
		return false, nil
	}

	sh := r.shard(t)
	sh.mu.Lock()
	set := sh.topics[t]
	if set == nil {
		set = make(map[core.ConnID]topicMember)
		sh.topics[t] = set
	}
	set[id] = topicMember{session: e.session, seq: r.seq.Add(1)}
	sh.mu.Unlock()

	e.topics[t] = struct{}{}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Str("topic", t.String()).Msg("joined topic")
	return true, nil
}

// Leave removes the pair if present. It reports whether membership changed.
func (r *Registry) Leave(id core.ConnID, t domain.Topic) bool {
	e := r.entry(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if _, ok := e.topics[t]; !ok {
		return false
	}
	r.removeFromTopic(id, t)
	delete(e.topics, t)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Str("topic", t.String()).Msg("left topic")
	return true
}

func (r *Registry) removeFromTopic(id core.ConnID, t domain.Topic) {
	sh := r.shard(t)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set := sh.topics[t]
	if set == nil {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(sh.topics, t)
	}
}

// IsMember reads the topic's member set.
func (r *Registry) IsMember(id core.ConnID, t domain.Topic) bool {
	sh := r.shard(t)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.topics[t][id]
	return ok
}

// Members returns a point-in-time snapshot of the topic, in join order.
func (r *Registry) Members(t domain.Topic) []core.MemberSession {
	entries := r.snapshot(t)
	out := make([]core.MemberSession, len(entries))
	for i, m := range entries {
		out[i] = m.session
	}
	return out
}

// ListMembers returns the roster of the topic, in join order.
func (r *Registry) ListMembers(t domain.Topic) []core.MemberDTO {
	entries := r.snapshot(t)
	out := make([]core.MemberDTO, len(entries))
	for i, m := range entries {
		out[i] = core.MemberDTO{ConnectionID: m.session.ID(), UserID: m.session.UserID()}
	}
	return out
}

func (r *Registry) snapshot(t domain.Topic) []topicMember {
	sh := r.shard(t)
	sh.mu.RLock()
	set := sh.topics[t]
	out := make([]topicMember, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	sh.mu.RUnlock()

	slices.SortFunc(out, func(a, b topicMember) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// TopicsOf lists the topics a connection currently belongs to.
func (r *Registry) TopicsOf(id core.ConnID) []domain.Topic {
	e := r.entry(id)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Topic, 0, len(e.topics))
	for t := range e.topics {
		out = append(out, t)
	}
	sortTopics(out)
	return out
}

// PurgeConnection deregisters the connection and removes every membership it
// holds. It returns the voice topics the connection was in; ok is false when
// the connection was already purged.
func (r *Registry) PurgeConnection(id core.ConnID) (voice []domain.Topic, ok bool) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for t := range e.topics {
		r.removeFromTopic(id, t)
		if t.IsVoice() {
			voice = append(voice, t)
		}
	}
	n := len(e.topics)
	e.topics = nil
	sortTopics(voice)

	log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("topics", n).Msg("purged session")
	return voice, true
}

// Sessions returns every admitted session.
func (r *Registry) Sessions() []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberSession, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func sortTopics(ts []domain.Topic) {
	slices.SortFunc(ts, func(a, b domain.Topic) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
