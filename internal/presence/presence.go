// Package presence tracks which users are currently online. A user name
// may be online at most once; a second login under an in-use name is
// rejected, never merged.
package presence

import (
	"sort"
	"sync"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/logging"
)

// Tracker is the global online-user set.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
	logger *logging.Logger
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{
		online: make(map[string]struct{}),
		logger: logger.WithComponent("presence"),
	}
}

// Login adds the user to the online set. Returns ErrDuplicateUser if the
// name is already in use.
func (t *Tracker) Login(user string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.online[user]; exists {
		t.logger.Warn("duplicate login rejected", "user", user)
		return errors.Wrapf(errors.ErrDuplicateUser, "%s", user)
	}
	t.online[user] = struct{}{}
	t.logger.Info("user online", "user", user, "online", len(t.online))
	return nil
}

// Logout removes the user from the online set. Returns false if the user
// was not online.
func (t *Tracker) Logout(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.online[user]; !exists {
		return false
	}
	delete(t.online, user)
	t.logger.Info("user offline", "user", user, "online", len(t.online))
	return true
}

// IsOnline reports whether the user is currently logged in.
func (t *Tracker) IsOnline(user string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.online[user]
	return exists
}

// Online returns the sorted list of logged-in users.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.online))
	for u := range t.online {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
