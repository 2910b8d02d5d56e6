package impersonation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-labs/meridian/internal/access"
	"github.com/meridian-labs/meridian/internal/audit"
	"github.com/meridian-labs/meridian/internal/pages"
	"github.com/meridian-labs/meridian/internal/users"
)

// Directory supplies fresh snapshots of users and pages. Every authorization
// re-check reads through it so the decision never runs against records older
// than the mutation it guards.
type Directory interface {
	UserByID(ctx context.Context, id string) (users.User, error)
	PageByID(ctx context.Context, id string) (pages.Page, error)
}

// PageWriter applies a live-edit mutation to the target page.
type PageWriter interface {
	ApplyContent(ctx context.Context, pageID string, title string, layout []byte) error
}

type tripleKey struct {
	adminID  string
	targetID string
	pageID   string
}

type entry struct {
	mu   sync.Mutex
	sess Session
}

// Manager owns the in-process impersonation session table. Transitions of one
// session are serialized on a per-session lock; the table itself is guarded
// separately so sessions on different keys proceed independently. Expiry is
// evaluated lazily at call time; the host may additionally run Sweep on a
// schedule to reclaim abandoned entries.
type Manager struct {
	dir    Directory
	writer PageWriter
	eval   *access.Evaluator
	audit  *audit.Service
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	triples map[tripleKey]string
}

// NewManager constructs a Manager with the given session lifetime.
func NewManager(dir Directory, writer PageWriter, eval *access.Evaluator, auditSvc *audit.Service, logger *slog.Logger, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{
		dir:     dir,
		writer:  writer,
		eval:    eval,
		audit:   auditSvc,
		logger:  logger,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]*entry),
		triples: make(map[tripleKey]string),
	}
}

// Open starts a delegated session after re-running the access check. A second
// open on the same (admin, target, page) triple is rejected while the first
// is still live; it is never silently reused.
func (m *Manager) Open(ctx context.Context, adminID, targetUserID, pageID string, mode Mode) (Session, error) {
	if mode != ModePreview && mode != ModeEdit {
		return Session{}, fmt.Errorf("impersonation: invalid mode %q", mode)
	}
	action := access.ActionView
	if mode == ModeEdit {
		action = access.ActionEdit
	}
	if err := m.check(ctx, adminID, targetUserID, pageID, action); err != nil {
		return Session{}, err
	}

	key := tripleKey{adminID: adminID, targetID: targetUserID, pageID: pageID}
	now := m.now()

	m.mu.Lock()
	if existingID, ok := m.triples[key]; ok {
		if existing := m.entries[existingID]; existing != nil {
			existing.mu.Lock()
			live := existing.sess.State == StateOpen && now.Before(existing.sess.ExpiresAt)
			if !live {
				// The previous session on this triple lapsed without an
				// explicit close; reclaim it before opening anew.
				existing.sess.State = StateClosed
			}
			existing.mu.Unlock()
			if live {
				m.mu.Unlock()
				return Session{}, ErrConflictingSession
			}
		}
		delete(m.triples, key)
	}
	e := &entry{sess: Session{
		ID:            uuid.NewString(),
		ActingAdminID: adminID,
		TargetUserID:  targetUserID,
		PageID:        pageID,
		Mode:          mode,
		State:         StateOpen,
		OpenedAt:      now,
		ExpiresAt:     now.Add(m.ttl),
	}}
	m.entries[e.sess.ID] = e
	m.triples[key] = e.sess.ID
	sess := e.sess
	m.mu.Unlock()

	m.audit.Append(ctx, audit.Entry{
		UserID:   adminID,
		Action:   "impersonation.open",
		Entity:   "impersonation_session",
		EntityID: sess.ID,
		Details:  fmt.Sprintf("admin %s opened %s session as user %s on page %s", adminID, mode, targetUserID, pageID),
	})
	return sess, nil
}

// Get returns a copy of the session, reporting lazy expiry.
func (m *Manager) Get(sessionID string) (Session, error) {
	e, err := m.entry(sessionID)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := m.touch(e); err != nil {
		return e.sess, err
	}
	return e.sess, nil
}

// Escalate transitions a preview session to edit mode. The edit-level access
// check runs again against a fresh snapshot: authorization may have changed
// since the session opened. On denial the session stays in preview.
func (m *Manager) Escalate(ctx context.Context, sessionID string) (Session, error) {
	e, err := m.entry(sessionID)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.touch(e); err != nil {
		return Session{}, err
	}
	if e.sess.Mode == ModeEdit {
		return e.sess, nil
	}
	if err := m.check(ctx, e.sess.ActingAdminID, e.sess.TargetUserID, e.sess.PageID, access.ActionEdit); err != nil {
		return Session{}, err
	}
	e.sess.Mode = ModeEdit
	m.audit.Append(ctx, audit.Entry{
		UserID:   e.sess.ActingAdminID,
		Action:   "impersonation.escalate",
		Entity:   "impersonation_session",
		EntityID: e.sess.ID,
		Details: fmt.Sprintf("admin %s escalated to edit as user %s on page %s",
			e.sess.ActingAdminID, e.sess.TargetUserID, e.sess.PageID),
	})
	return e.sess, nil
}

// ApplyEdit applies a mutation to the target user's page. Valid only in edit
// mode. The access check is re-run under the session lock immediately before
// the write, so the mutation can never apply under a snapshot that was not
// checked.
func (m *Manager) ApplyEdit(ctx context.Context, sessionID string, mut Mutation) error {
	e, err := m.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.touch(e); err != nil {
		return err
	}
	if e.sess.Mode != ModeEdit {
		return ErrSessionNotEditable
	}
	if mut.empty() {
		return ErrEmptyMutation
	}
	if err := m.check(ctx, e.sess.ActingAdminID, e.sess.TargetUserID, e.sess.PageID, access.ActionEdit); err != nil {
		return err
	}
	if err := m.writer.ApplyContent(ctx, e.sess.PageID, mut.Title, mut.Layout); err != nil {
		return err
	}
	m.audit.Append(ctx, audit.Entry{
		UserID:   e.sess.ActingAdminID,
		Action:   "impersonation.edit",
		Entity:   "page",
		EntityID: e.sess.PageID,
		Details: fmt.Sprintf("admin %s edited page %s as user %s",
			e.sess.ActingAdminID, e.sess.PageID, e.sess.TargetUserID),
	})
	return nil
}

// Close terminates the session. Always succeeds and is idempotent: closing a
// closed, expired or unknown session is a no-op, and the audit entry is
// written exactly once.
func (m *Manager) Close(ctx context.Context, sessionID string) {
	m.mu.Lock()
	e, ok := m.entries[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	alreadyClosed := e.sess.State == StateClosed
	e.sess.State = StateClosed
	sess := e.sess
	e.mu.Unlock()

	m.mu.Lock()
	key := tripleKey{adminID: sess.ActingAdminID, targetID: sess.TargetUserID, pageID: sess.PageID}
	// The triple may already point at a newer session if this one lapsed and
	// Open reclaimed the key; only remove the row this session still owns.
	if m.triples[key] == sess.ID {
		delete(m.triples, key)
	}
	m.mu.Unlock()

	if alreadyClosed {
		return
	}
	m.audit.Append(ctx, audit.Entry{
		UserID:   sess.ActingAdminID,
		Action:   "impersonation.close",
		Entity:   "impersonation_session",
		EntityID: sess.ID,
		Details: fmt.Sprintf("admin %s closed session as user %s on page %s",
			sess.ActingAdminID, sess.TargetUserID, sess.PageID),
	})
}

// CloseAllFor terminates every session opened by the admin. Called when the
// admin's own authenticated session ends.
func (m *Manager) CloseAllFor(ctx context.Context, adminID string) {
	m.mu.Lock()
	var ids []string
	for id, e := range m.entries {
		if e.sess.ActingAdminID == adminID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Close(ctx, id)
	}
}

// Sweep reclaims closed and overdue sessions from the table. Returns how many
// entries were removed. Core expiry stays lazy; this only frees memory.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	candidates := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		candidates = append(candidates, e)
	}
	m.mu.Unlock()

	removed := 0
	for _, e := range candidates {
		e.mu.Lock()
		gone := e.sess.State != StateOpen || now.After(e.sess.ExpiresAt)
		if gone {
			e.sess.State = StateClosed
		}
		sess := e.sess
		e.mu.Unlock()
		if !gone {
			continue
		}
		m.mu.Lock()
		if cur, ok := m.entries[sess.ID]; ok && cur == e {
			delete(m.entries, sess.ID)
			key := tripleKey{adminID: sess.ActingAdminID, targetID: sess.TargetUserID, pageID: sess.PageID}
			if m.triples[key] == sess.ID {
				delete(m.triples, key)
			}
			removed++
		}
		m.mu.Unlock()
	}
	if removed > 0 && m.logger != nil {
		m.logger.Info("swept impersonation sessions", slog.Int("removed", removed))
	}
	return removed
}

func (m *Manager) entry(sessionID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// touch enforces lifecycle on every operation. Must hold e.mu and nothing
// else; the stale triple index entry is reclaimed by Open or Sweep.
func (m *Manager) touch(e *entry) error {
	if e.sess.State == StateClosed {
		return ErrSessionClosed
	}
	if e.sess.State == StateExpired {
		e.sess.State = StateClosed
		return ErrSessionExpired
	}
	if m.now().After(e.sess.ExpiresAt) {
		e.sess.State = StateExpired
		return ErrSessionExpired
	}
	return nil
}

// check loads a fresh snapshot and runs the evaluator.
func (m *Manager) check(ctx context.Context, adminID, targetUserID, pageID string, action access.Action) error {
	admin, err := m.dir.UserByID(ctx, adminID)
	if err != nil {
		return err
	}
	target, err := m.dir.UserByID(ctx, targetUserID)
	if err != nil {
		return err
	}
	page, err := m.dir.PageByID(ctx, pageID)
	if err != nil {
		return err
	}
	decision, err := m.eval.Evaluate(admin, target, page, action)
	if err != nil {
		// Unknown role: data integrity fault, surfaced to the operator
		// channel rather than reported as a plain denial.
		if m.logger != nil {
			m.logger.Error("access evaluation integrity fault", slog.Any("error", err))
		}
		return err
	}
	if !decision.Allowed {
		return &DeniedError{Reason: decision.Reason}
	}
	return nil
}
