package signing_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/pkg/auth"
)

var (
	ownerID = uuid.MustParse("00000000-0000-0000-0000-00000000000f")
	aliceID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bobID   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carolID = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	adminID = uuid.MustParse("00000000-0000-0000-0000-0000000000ad")
	docID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")

	clock = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

var directory = map[uuid.UUID]signing.User{
	ownerID: {ID: ownerID, Name: "Olga Owner", Email: "olga@example.com"},
	aliceID: {ID: aliceID, Name: "Alice", Email: "alice@example.com"},
	bobID:   {ID: bobID, Name: "Bob", Email: "bob@example.com"},
	carolID: {ID: carolID, Name: "Carol", Email: "carol@example.com"},
}

func ident(id uuid.UUID) auth.Identity {
	if id == adminID {
		return auth.Identity{ID: id, Name: "Admin", Role: auth.RoleAdmin}
	}
	u := directory[id]
	return auth.Identity{ID: id, Name: u.Name, Email: u.Email, Role: auth.RoleUser}
}

func participants(ids ...uuid.UUID) []signing.Participant {
	ps := make([]signing.Participant, len(ids))
	for i, id := range ids {
		ps[i] = signing.Participant{UserID: id}
	}
	return ps
}

func emptyDoc() signing.Snapshot {
	return signing.Snapshot{
		DocumentID: docID,
		Title:      "Supply contract",
		OwnerID:    ownerID,
		Status:     signing.StatusPending,
	}
}

// assigned returns a document with the given users assigned in order.
func assigned(ids ...uuid.UUID) signing.Snapshot {
	s, err := emptyDoc().Assign(ident(ownerID), participants(ids...), directory, clock)
	if err != nil {
		panic(err)
	}
	return s
}

func approve(s signing.Snapshot, id uuid.UUID) (signing.Snapshot, error) {
	next, _, err := s.Act(ident(id), signing.ActCommand{Decision: signing.Approve}, clock)
	return next, err
}

func positions(s signing.Snapshot) map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(s.Assignments))
	for _, a := range s.Assignments {
		m[a.UserID] = a.Position
	}
	return m
}

// memoryStore is an in-memory Store. Update serializes on a mutex the way the
// row lock serializes in Postgres.
type memoryStore struct {
	mu    sync.Mutex
	docs  map[uuid.UUID]signing.Snapshot
	users map[uuid.UUID]signing.User
}

func newMemoryStore(snaps ...signing.Snapshot) *memoryStore {
	m := &memoryStore{
		docs:  make(map[uuid.UUID]signing.Snapshot),
		users: directory,
	}
	for _, s := range snaps {
		m.docs[s.DocumentID] = s.Clone()
	}
	return m
}

func (m *memoryStore) Snapshot(_ context.Context, id uuid.UUID) (signing.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.docs[id]
	if !ok {
		return signing.Snapshot{}, signing.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memoryStore) Update(
	_ context.Context,
	id uuid.UUID,
	fn func(signing.Snapshot) (signing.Snapshot, error),
) (signing.Snapshot, signing.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.docs[id]
	if !ok {
		return signing.Snapshot{}, signing.Snapshot{}, signing.ErrNotFound
	}
	after, err := fn(before.Clone())
	if err != nil {
		return signing.Snapshot{}, signing.Snapshot{}, err
	}
	after.Status = signing.DeriveStatus(after.Outcomes)
	m.docs[id] = after.Clone()
	return before, after, nil
}

func (m *memoryStore) Users(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]signing.User, error) {
	out := make(map[uuid.UUID]signing.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memoryStore) Open(context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.docs {
		if !s.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
