package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/pkg/logger"
	"github.com/okian/competa/pkg/metrics"
)

const defaultCapacity = 10000

// node is one entry of the registry's recency list.
type node struct {
	author  string
	session *Session
	next    *node
}

// Registry holds at most one active session per author. It is process
// scoped: sessions are lost on restart. When full, the least recently
// selected author is evicted.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*node
	head     *node // most recently selected
	capacity int
	rubric   *rubric.Rubric
	logger   logger.Logger
}

// NewRegistry creates an empty registry validating codes against r.
func NewRegistry(r *rubric.Rubric, opts ...Option) *Registry {
	reg := &Registry{
		sessions: make(map[string]*node),
		capacity: defaultCapacity,
		rubric:   r,
		logger:   logger.Get().Named("capture"),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Select returns the author's session for (student, code). A selection that
// differs from the active one discards it and starts a fresh session in new
// mode.
func (r *Registry) Select(author, student, code string) (*Session, error) {
	if author == "" || student == "" || code == "" {
		return nil, ErrInvalidSelection
	}
	if r.rubric != nil && !r.rubric.Has(code) {
		return nil, fmt.Errorf("%q: %w", code, ErrUnknownCompetency)
	}
	key := Key{AuthorID: author, StudentID: student, CompetencyCode: code}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.sessions[author]; ok {
		r.unlink(n)
		if n.session.Key() == key {
			r.pushFront(n)
			return n.session, nil
		}
		r.logger.Debug(context.Background(), "selection changed",
			logger.String("author", author),
			logger.String("student", student),
			logger.String("competency", code),
		)
	}

	if len(r.sessions) >= r.capacity {
		r.evictOldest()
	}
	n := &node{author: author, session: NewSession(key, r.rubric)}
	r.pushFront(n)
	metrics.UpdateActiveSessions(len(r.sessions))
	return n.session, nil
}

// Active returns the author's current session.
func (r *Registry) Active(author string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.sessions[author]
	if !ok {
		return nil, false
	}
	return n.session, true
}

// Forget drops the author's selection.
func (r *Registry) Forget(author string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.sessions[author]; ok {
		r.unlink(n)
		metrics.UpdateActiveSessions(len(r.sessions))
	}
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// pushFront must be called with r.mu held.
func (r *Registry) pushFront(n *node) {
	n.next = r.head
	r.head = n
	r.sessions[n.author] = n
}

// unlink removes n from the list and the map. Must be called with r.mu held.
func (r *Registry) unlink(n *node) {
	delete(r.sessions, n.author)
	if r.head == n {
		r.head = n.next
		n.next = nil
		return
	}
	cur := r.head
	for cur != nil && cur.next != n {
		cur = cur.next
	}
	if cur != nil {
		cur.next = n.next
	}
	n.next = nil
}

// evictOldest removes the tail of the list. Must be called with r.mu held.
func (r *Registry) evictOldest() {
	if r.head == nil {
		return
	}
	var prev *node
	cur := r.head
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	if prev == nil {
		r.head = nil
	} else {
		prev.next = nil
	}
	delete(r.sessions, cur.author)
	metrics.RecordSessionEviction()
}
