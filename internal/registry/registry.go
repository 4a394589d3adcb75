package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/lock"
	"github.com/coedit/coedit/internal/logging"
	"github.com/coedit/coedit/internal/protocol"
	"github.com/coedit/coedit/internal/store"
)

// DefaultCapacity bounds how many documents may be open at once.
const DefaultCapacity = 10

// document is one resident document. Content mutation is guarded by the
// document's own mutex so edits to unrelated documents never serialize.
type document struct {
	mu             sync.Mutex
	name           string
	content        string
	savedContent   string
	creatorID      string
	lastEditorID   string
	createdAt      time.Time
	lastModifiedAt time.Time
	participants   map[string]struct{}
}

func (d *document) participantList() []string {
	users := make([]string, 0, len(d.participants))
	for u := range d.participants {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (d *document) info() protocol.DocumentInfo {
	return protocol.DocumentInfo{
		Name:           d.name,
		CreatorID:      d.creatorID,
		LastEditorID:   d.lastEditorID,
		CreatedAt:      d.createdAt,
		LastModifiedAt: d.lastModifiedAt,
		ActiveUsers:    d.participantList(),
	}
}

// Registry is the authoritative document state.
type Registry struct {
	mu       sync.RWMutex
	docs     map[string]*document
	current  map[string]string
	capacity int
	locks    *lock.Table
	store    *store.Store
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity overrides the maximum number of resident documents.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// withClock overrides the time source. Tests only.
func withClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a Registry backed by the given lock table and store.
func New(locks *lock.Table, st *store.Store, logger *logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Registry{
		docs:     make(map[string]*document),
		current:  make(map[string]string),
		capacity: DefaultCapacity,
		locks:    locks,
		store:    st,
		logger:   logger.WithComponent("registry"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LeaveResult reports the cleanup performed when a user left a document.
type LeaveResult struct {
	Doc          string
	Released     []lock.Range
	Participants []string
}

// OpenResult reports a successful Create or Select.
type OpenResult struct {
	// Left is the cleanup of the requester's previously open document,
	// nil if they had none.
	Left *LeaveResult

	Doc          string
	Content      string
	Locks        []lock.Range
	Participants []string
}

// EditResult reports a successful content replacement.
type EditResult struct {
	Doc        string
	Content    string
	Recipients []string
}

// SaveResult reports a save. Changed is false when the content on disk
// already matched, making the save an observable no-op.
type SaveResult struct {
	Doc     string
	Changed bool
}

// DeleteResult reports a document removal.
type DeleteResult struct {
	Doc          string
	Participants []string
}

// Create makes a new empty document and opens it for the requester.
func (r *Registry) Create(name, requester string) (*OpenResult, error) {
	if err := store.ValidName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[name]; exists || r.store.Exists(name) {
		return nil, errors.NewAlreadyExistsError("document", name)
	}
	if len(r.docs) >= r.capacity {
		return nil, errors.Wrapf(errors.ErrCapacityExceeded,
			"%d documents open", len(r.docs))
	}

	left := r.leaveLocked(requester)

	now := r.now()
	d := &document{
		name:           name,
		creatorID:      requester,
		lastEditorID:   requester,
		createdAt:      now,
		lastModifiedAt: now,
		participants:   map[string]struct{}{requester: {}},
	}
	r.docs[name] = d
	r.current[requester] = name

	r.logger.Info("document created", "doc", name, "user", requester)
	return &OpenResult{
		Left:         left,
		Doc:          name,
		Content:      "",
		Participants: d.participantList(),
	}, nil
}

// Select opens an existing document for the requester, loading persisted
// content if the document is not resident.
func (r *Registry) Select(name, requester string) (*OpenResult, error) {
	if err := store.ValidName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, resident := r.docs[name]
	if !resident {
		content, err := r.store.Load(name)
		if err != nil {
			return nil, err
		}
		if len(r.docs) >= r.capacity {
			return nil, errors.Wrapf(errors.ErrCapacityExceeded,
				"%d documents open", len(r.docs))
		}
		now := r.now()
		// Authorship metadata is not persisted; a reloaded document is
		// attributed to whoever reopened it.
		d = &document{
			name:           name,
			content:        content,
			savedContent:   content,
			creatorID:      requester,
			lastEditorID:   requester,
			createdAt:      now,
			lastModifiedAt: now,
			participants:   make(map[string]struct{}),
		}
		r.docs[name] = d
	}

	if r.current[requester] == name {
		// Re-selecting the open document just refreshes the view.
		return &OpenResult{
			Doc:          name,
			Content:      d.content,
			Locks:        r.locks.CurrentLocks(name),
			Participants: d.participantList(),
		}, nil
	}

	left := r.leaveLocked(requester)

	d.participants[requester] = struct{}{}
	r.current[requester] = name

	r.logger.Info("document selected", "doc", name, "user", requester)
	return &OpenResult{
		Left:         left,
		Doc:          name,
		Content:      d.content,
		Locks:        r.locks.CurrentLocks(name),
		Participants: d.participantList(),
	}, nil
}

// Edit replaces the content of the requester's open document. The changed
// line span is computed against the old content and rejected if it touches
// a range owned by someone else.
func (r *Registry) Edit(requester, newContent string) (*EditResult, error) {
	// Holding the read lock for the whole operation keeps the participant
	// set stable while still letting edits to unrelated documents proceed
	// concurrently; d.mu serializes edits to the same document.
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.current[requester]
	if !ok {
		return nil, errors.ErrNoOpenDocument
	}
	d := r.docs[name]

	d.mu.Lock()
	defer d.mu.Unlock()

	if start, end, changed := changedSpan(d.content, newContent); changed {
		for _, lr := range r.locks.CurrentLocks(name) {
			if lr.Owner != requester && lr.Overlaps(lock.NewRange(start, end, "")) {
				return nil, errors.Wrapf(errors.ErrLockConflict,
					"lines %d-%d locked by %s", lr.Start, lr.End, lr.Owner)
			}
		}
	}

	d.content = newContent
	d.lastEditorID = requester
	d.lastModifiedAt = r.now()
	r.locks.Touch(name, requester)

	recipients := make([]string, 0, len(d.participants))
	for u := range d.participants {
		if u != requester {
			recipients = append(recipients, u)
		}
	}
	sort.Strings(recipients)

	return &EditResult{Doc: name, Content: newContent, Recipients: recipients}, nil
}

// Save persists the requester's open document. Saving content identical to
// the last save is a no-op.
func (r *Registry) Save(requester string) (*SaveResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.current[requester]
	if !ok {
		return nil, errors.ErrNoOpenDocument
	}
	d := r.docs[name]

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.content == d.savedContent && r.store.Exists(name) {
		return &SaveResult{Doc: name, Changed: false}, nil
	}
	if err := r.store.Save(name, d.content); err != nil {
		return nil, err
	}
	d.savedContent = d.content
	r.logger.Info("document saved", "doc", name, "user", requester)
	return &SaveResult{Doc: name, Changed: true}, nil
}

// Delete removes a document entirely: participants are evicted, locks
// dropped, and the persisted copy deleted.
func (r *Registry) Delete(name, requester string) (*DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, resident := r.docs[name]
	if !resident && !r.store.Exists(name) {
		return nil, errors.NewNotFoundError("document", name)
	}

	var participants []string
	if resident {
		participants = d.participantList()
		for u := range d.participants {
			delete(r.current, u)
		}
		delete(r.docs, name)
	}
	r.locks.DropDocument(name)
	if err := r.store.Delete(name); err != nil {
		// State is already gone in memory; surface the persistence failure.
		return &DeleteResult{Doc: name, Participants: participants}, err
	}

	r.logger.Info("document deleted", "doc", name, "user", requester)
	return &DeleteResult{Doc: name, Participants: participants}, nil
}

// Leave detaches the user from their open document, releasing their locks.
// Returns nil if the user had no document open. Used on logout, disconnect,
// and document switch.
func (r *Registry) Leave(user string) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(user)
}

// leaveLocked is Leave with r.mu already held.
func (r *Registry) leaveLocked(user string) *LeaveResult {
	name, ok := r.current[user]
	if !ok {
		return nil
	}
	delete(r.current, user)

	released := r.locks.ReleaseAllOf(name, user)

	res := &LeaveResult{Doc: name, Released: released}
	if d, resident := r.docs[name]; resident {
		delete(d.participants, user)
		res.Participants = d.participantList()
	}
	return res
}

// List returns every known document: resident ones with live metadata,
// persisted-but-closed ones with name only.
func (r *Registry) List() ([]protocol.DocumentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.docs))
	infos := make([]protocol.DocumentInfo, 0, len(r.docs))
	for name, d := range r.docs {
		seen[name] = true
		infos = append(infos, d.info())
	}

	stored, err := r.store.List()
	if err != nil {
		return nil, err
	}
	for _, name := range stored {
		if !seen[name] {
			infos = append(infos, protocol.DocumentInfo{Name: name})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Participants returns the current participant set of a resident document.
func (r *Registry) Participants(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.docs[name]; ok {
		return d.participantList()
	}
	return nil
}

// CurrentDoc returns the document the user has open, if any.
func (r *Registry) CurrentDoc(user string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.current[user]
	return name, ok
}
