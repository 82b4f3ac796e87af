package notifications_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/internal/notifications"
	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/cache"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
)

var (
	ownerID = uuid.MustParse("00000000-0000-0000-0000-00000000000f")
	aliceID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bobID   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	docID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

var directory = map[uuid.UUID]signing.User{
	ownerID: {ID: ownerID, Name: "Olga", Email: "olga@example.com"},
	aliceID: {ID: aliceID, Name: "Alice", Email: "alice@example.com"},
	bobID:   {ID: bobID, Name: "Bob", Email: "bob@example.com"},
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ownerIdent() auth.Identity { return auth.Identity{ID: ownerID, Role: auth.RoleUser} }

func doc(ids ...uuid.UUID) signing.Snapshot {
	s := signing.Snapshot{DocumentID: docID, Title: "Lease <draft>", OwnerID: ownerID}
	if len(ids) == 0 {
		return s
	}
	batch := make([]signing.Participant, len(ids))
	for i, id := range ids {
		batch[i] = signing.Participant{UserID: id}
	}
	s, err := s.Assign(ownerIdent(), batch, directory, time.Now())
	if err != nil {
		panic(err)
	}
	return s
}

func act(s signing.Snapshot, id uuid.UUID, d signing.Decision) signing.Snapshot {
	next, _, err := s.Act(auth.Identity{ID: id}, signing.ActCommand{Decision: d, Reason: "not acceptable"}, time.Now())
	if err != nil {
		panic(err)
	}
	return next
}

func change(before, after signing.Snapshot) signing.Change {
	return signing.Change{Before: before, After: after, Effects: signing.PlanEffects(before, after)}
}

type row struct {
	id         uuid.UUID
	documentID uuid.UUID
	userID     uuid.UUID
	kind       notifications.Kind
	createdAt  time.Time
	remindedAt *time.Time
	read       bool
}

type fakeRepo struct {
	mu     sync.Mutex
	rows   []row
	closed []uuid.UUID
}

func (f *fakeRepo) insert(documentID, userID uuid.UUID, kind notifications.Kind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.documentID == documentID && r.userID == userID && r.kind == kind {
			return false
		}
	}
	f.rows = append(f.rows, row{id: uuid.New(), documentID: documentID, userID: userID, kind: kind, createdAt: time.Now()})
	return true
}

func (f *fakeRepo) Request(_ context.Context, documentID, userID uuid.UUID) (bool, error) {
	return f.insert(documentID, userID, notifications.KindSignatureRequest), nil
}

func (f *fakeRepo) Notice(_ context.Context, documentID, userID uuid.UUID, kind notifications.Kind) (bool, error) {
	return f.insert(documentID, userID, kind), nil
}

func (f *fakeRepo) delete(match func(row) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.rows)
	f.rows = slices.DeleteFunc(f.rows, match)
	return int64(before - len(f.rows))
}

func (f *fakeRepo) Revoke(_ context.Context, documentID, userID uuid.UUID) (int64, error) {
	return f.delete(func(r row) bool {
		return r.documentID == documentID && r.userID == userID && r.kind == notifications.KindSignatureRequest
	}), nil
}

func (f *fakeRepo) RevokeClosed(context.Context) (int64, error) {
	return f.delete(func(r row) bool {
		return slices.Contains(f.closed, r.documentID) && r.kind == notifications.KindSignatureRequest
	}), nil
}

func (f *fakeRepo) Requests(_ context.Context, documentID uuid.UUID) ([]notifications.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifications.Request
	for _, r := range f.rows {
		if r.documentID == documentID && r.kind == notifications.KindSignatureRequest {
			out = append(out, notifications.Request{ID: r.id, UserID: r.userID, CreatedAt: r.createdAt, RemindedAt: r.remindedAt})
		}
	}
	return out, nil
}

func (f *fakeRepo) Reminded(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].id == id {
			now := time.Now()
			f.rows[i].remindedAt = &now
			return nil
		}
	}
	return notifications.ErrNotFound
}

func (f *fakeRepo) Recipient(_ context.Context, userID uuid.UUID) (notifications.Recipient, error) {
	u, ok := directory[userID]
	if !ok {
		return notifications.Recipient{}, notifications.ErrNotFound
	}
	return notifications.Recipient{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func (f *fakeRepo) List(
	_ context.Context,
	userID uuid.UUID,
	page pagination.PageRequest,
	_ notifications.Filters,
) (*pagination.PageResult[notifications.Notification], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifications.Notification
	for _, r := range f.rows {
		if r.userID == userID {
			out = append(out, notifications.Notification{ID: r.id, DocumentID: r.documentID, UserID: r.userID, Kind: r.kind, Read: r.read})
		}
	}
	res := pagination.NewPageResult(out, len(out), page.Page, page.PageSize)
	return &res, nil
}

func (f *fakeRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].id == id && f.rows[i].userID == userID {
			f.rows[i].read = true
			return nil
		}
	}
	return notifications.ErrNotFound
}

func (f *fakeRepo) requested(documentID uuid.UUID) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, r := range f.rows {
		if r.documentID == documentID && r.kind == notifications.KindSignatureRequest {
			out = append(out, r.userID)
		}
	}
	return out
}

func (f *fakeRepo) count(kind notifications.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeRepo) age(userID uuid.UUID, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].userID == userID {
			f.rows[i].createdAt = f.rows[i].createdAt.Add(-d)
		}
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notifications.Message
	fail map[string]bool
}

func (s *fakeSender) Send(_ context.Context, m notifications.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[m.To] {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSender) to() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.To
	}
	slices.Sort(out)
	return out
}

// stateStore serves the current snapshot of a single document.
type stateStore struct {
	snap signing.Snapshot
}

func (s *stateStore) Snapshot(context.Context, uuid.UUID) (signing.Snapshot, error) {
	return s.snap, nil
}

func (s *stateStore) Update(context.Context, uuid.UUID, func(signing.Snapshot) (signing.Snapshot, error)) (signing.Snapshot, signing.Snapshot, error) {
	return signing.Snapshot{}, signing.Snapshot{}, errors.New("read only")
}

func (s *stateStore) Users(context.Context, []uuid.UUID) (map[uuid.UUID]signing.User, error) {
	return directory, nil
}

func (s *stateStore) Open(context.Context) ([]uuid.UUID, error) {
	if len(s.snap.Assignments) == 0 || s.snap.Status.Terminal() {
		return nil, nil
	}
	return []uuid.UUID{s.snap.DocumentID}, nil
}

type harness struct {
	sys    notifications.System
	repo   *fakeRepo
	sender *fakeSender
	state  *stateStore
}

func newHarness(window time.Duration) *harness {
	h := &harness{
		repo:   &fakeRepo{},
		sender: &fakeSender{fail: map[string]bool{}},
		state:  &stateStore{},
	}
	h.sys = notifications.New(
		h.repo,
		h.state,
		h.sender,
		cache.NewMemory("test"),
		notifications.Config{
			Workers:       2,
			RatePerSecond: 1000,
			Burst:         10,
			DedupeWindow:  window,
			ReminderAfter: time.Hour,
			SweepInterval: time.Minute,
			AppURL:        "https://sign.example.com",
		},
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		discard(),
	)
	return h
}

// handle commits c to the state store and then runs its effects.
func (h *harness) handle(c signing.Change) error {
	h.state.snap = c.After
	return h.sys.Handle(context.Background(), c)
}

func TestHandleNotifiesFirstParticipantOnce(t *testing.T) {
	h := newHarness(time.Minute)
	c := change(doc(), doc(aliceID, bobID))

	for range 2 {
		if err := h.handle(c); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if got := h.sender.to(); !slices.Equal(got, []string{"alice@example.com"}) {
		t.Errorf("mail sent to %v, want alice once", got)
	}
	if n := h.repo.count(notifications.KindSignatureRequest); n != 1 {
		t.Errorf("signature requests: got %d, want 1", n)
	}
}

func TestHandleApprovalMovesRequest(t *testing.T) {
	h := newHarness(time.Minute)
	assigned := doc(aliceID, bobID)
	h.handle(change(doc(), assigned))

	approved := act(assigned, aliceID, signing.Approve)
	if err := h.handle(change(assigned, approved)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	reqs, _ := h.repo.Requests(context.Background(), docID)
	if len(reqs) != 1 || reqs[0].UserID != bobID {
		t.Errorf("requests: got %+v, want bob only", reqs)
	}
	if got := h.sender.to(); !slices.Equal(got, []string{"alice@example.com", "bob@example.com"}) {
		t.Errorf("mail: got %v", got)
	}
	if s := h.sys.Stats(); s.Revoked != 1 || s.Sent != 2 {
		t.Errorf("stats: got %+v", s)
	}
}

func TestHandleRejectionRevokesAndNotifiesOwner(t *testing.T) {
	h := newHarness(time.Minute)
	assigned := doc(aliceID, bobID)
	h.handle(change(doc(), assigned))

	rejected := act(assigned, aliceID, signing.Reject)
	c := change(assigned, rejected)
	for range 2 {
		if err := h.handle(c); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if n := h.repo.count(notifications.KindSignatureRequest); n != 0 {
		t.Errorf("requests after rejection: got %d, want 0", n)
	}
	if n := h.repo.count(notifications.KindDocumentRejected); n != 1 {
		t.Errorf("owner notices: got %d, want 1", n)
	}

	var subjects []string
	h.sender.mu.Lock()
	for _, m := range h.sender.sent {
		if m.To == "olga@example.com" {
			subjects = append(subjects, m.Subject)
		}
	}
	h.sender.mu.Unlock()
	if len(subjects) != 1 || !strings.HasPrefix(subjects[0], "Rejected:") {
		t.Errorf("owner mail: got %v", subjects)
	}
}

func TestHandleCountsFailedSends(t *testing.T) {
	h := newHarness(time.Minute)
	h.sender.fail["alice@example.com"] = true

	single := doc(aliceID)
	completed := act(single, aliceID, signing.Approve)

	h.handle(change(doc(), single))
	if err := h.handle(change(single, completed)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if got := h.sender.to(); !slices.Equal(got, []string{"olga@example.com"}) {
		t.Errorf("mail: got %v", got)
	}
	if s := h.sys.Stats(); s.Failed != 1 || s.Sent != 1 {
		t.Errorf("stats: got %+v", s)
	}
}

func TestHandleOutOfOrderChangesFollowStoredState(t *testing.T) {
	h := newHarness(time.Minute)
	assigned := doc(aliceID, bobID)
	if err := h.handle(change(doc(), assigned)); err != nil {
		t.Fatalf("handle assign: %v", err)
	}

	aliceSigned := act(assigned, aliceID, signing.Approve)
	completed := act(aliceSigned, bobID, signing.Approve)
	first := change(assigned, aliceSigned)
	second := change(aliceSigned, completed)

	// Both commits land before either change is handled, and the later one
	// is handled first.
	h.state.snap = completed
	for _, c := range []signing.Change{second, first} {
		if err := h.sys.Handle(context.Background(), c); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if reqs := h.repo.requested(docID); len(reqs) != 0 {
		t.Errorf("requests on completed document: got %v, want none", reqs)
	}
	if got := h.sender.to(); !slices.Equal(got, []string{"alice@example.com", "olga@example.com"}) {
		t.Errorf("mail: got %v, want alice request and owner notice only", got)
	}
	if n := h.repo.count(notifications.KindDocumentCompleted); n != 1 {
		t.Errorf("completion notices: got %d, want 1", n)
	}
}

func TestHandleIgnoresChangesWithoutNotificationEffects(t *testing.T) {
	h := newHarness(time.Minute)
	c := signing.Change{After: doc(aliceID), Effects: []signing.Effect{{Kind: signing.RegenerateArtifact}}}

	if err := h.handle(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if n := h.repo.count(notifications.KindSignatureRequest); n != 0 {
		t.Errorf("requests: got %d, want 0", n)
	}
}

func TestDedupeWindowSuppressesRepeatMail(t *testing.T) {
	h := newHarness(time.Hour)
	ab := doc(aliceID, bobID)
	h.handle(change(doc(), ab))

	ba, err := ab.Reorder(ownerIdent(), []uuid.UUID{bobID, aliceID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	h.handle(change(ab, ba))

	back, _ := ba.Reorder(ownerIdent(), []uuid.UUID{aliceID, bobID})
	h.handle(change(ba, back))

	if got := h.sender.to(); !slices.Equal(got, []string{"alice@example.com", "bob@example.com"}) {
		t.Errorf("mail: got %v, want one each", got)
	}
	if s := h.sys.Stats(); s.Suppressed != 1 {
		t.Errorf("suppressed: got %d, want 1", s.Suppressed)
	}
	if n := h.repo.count(notifications.KindSignatureRequest); n != 1 {
		t.Errorf("requests: got %d, want 1", n)
	}
}

func TestSweepReconcilesAndReminds(t *testing.T) {
	h := newHarness(time.Minute)
	assigned := doc(aliceID, bobID)
	approved := act(assigned, aliceID, signing.Approve)

	// A stale request for alice and none for bob.
	h.repo.Request(context.Background(), docID, aliceID)
	h.state.snap = approved

	if err := h.sys.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	reqs, _ := h.repo.Requests(context.Background(), docID)
	if len(reqs) != 1 || reqs[0].UserID != bobID {
		t.Fatalf("requests: got %+v, want bob only", reqs)
	}

	h.repo.age(bobID, 2*time.Hour)
	if err := h.sys.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if s := h.sys.Stats(); s.Reminded != 1 {
		t.Errorf("reminded: got %d, want 1", s.Reminded)
	}
	reqs, _ = h.repo.Requests(context.Background(), docID)
	if reqs[0].RemindedAt == nil {
		t.Error("reminder was not stamped")
	}
	if n := h.repo.count(notifications.KindReminder); n != 1 {
		t.Errorf("reminder inbox rows: got %d, want 1", n)
	}

	// Freshly reminded: nothing further is due.
	if err := h.sys.Sweep(context.Background()); err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	if s := h.sys.Stats(); s.Reminded != 1 {
		t.Errorf("reminded after third sweep: got %d, want 1", s.Reminded)
	}
}

func TestSweepRevokesRequestsOnClosedDocuments(t *testing.T) {
	h := newHarness(time.Minute)
	closedDoc := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	h.repo.Request(context.Background(), closedDoc, bobID)
	h.repo.closed = []uuid.UUID{closedDoc}
	h.state.snap = doc(aliceID)

	if err := h.sys.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if reqs := h.repo.requested(closedDoc); len(reqs) != 0 {
		t.Errorf("requests on closed document: got %v", reqs)
	}
	if reqs := h.repo.requested(docID); !slices.Equal(reqs, []uuid.UUID{aliceID}) {
		t.Errorf("requests on open document: got %v, want alice", reqs)
	}
	if s := h.sys.Stats(); s.Revoked != 1 {
		t.Errorf("revoked: got %d, want 1", s.Revoked)
	}
}

func TestRequestLastContact(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	r := notifications.Request{CreatedAt: created}
	if !r.LastContact().Equal(created) {
		t.Error("without reminder, last contact is creation")
	}
	r.RemindedAt = &later
	if !r.LastContact().Equal(later) {
		t.Error("reminder should move last contact")
	}
}

func TestMailIsRenderedAndEscaped(t *testing.T) {
	h := newHarness(time.Minute)
	h.handle(change(doc(), doc(aliceID)))

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	if len(h.sender.sent) != 1 {
		t.Fatalf("sent: got %d", len(h.sender.sent))
	}

	m := h.sender.sent[0]
	if m.Subject != "Signature requested: Lease <draft>" {
		t.Errorf("subject: got %q", m.Subject)
	}
	if !strings.Contains(m.HTML, "Lease &lt;draft&gt;") {
		t.Errorf("html title not escaped: %s", m.HTML)
	}
	link := "https://sign.example.com/documents/" + docID.String()
	if !strings.Contains(m.HTML, link) || !strings.Contains(m.Text, link) {
		t.Errorf("document link missing: %s", m.Text)
	}
	if !strings.HasPrefix(m.Text, "Hello Alice,") || m.ToName != "Alice" {
		t.Errorf("greeting: got %q", m.Text)
	}
}
