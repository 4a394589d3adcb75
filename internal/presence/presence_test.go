package presence

import (
	"reflect"
	"sync"
	"testing"

	"github.com/coedit/coedit/internal/errors"
)

func TestLoginAndLogout(t *testing.T) {
	tr := NewTracker(nil)

	if err := tr.Login("alice"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !tr.IsOnline("alice") {
		t.Error("IsOnline(alice) = false after login")
	}

	if !tr.Logout("alice") {
		t.Error("Logout() = false, want true")
	}
	if tr.IsOnline("alice") {
		t.Error("IsOnline(alice) = true after logout")
	}
	if tr.Logout("alice") {
		t.Error("second Logout() = true, want false")
	}
}

func TestDuplicateLoginRejected(t *testing.T) {
	tr := NewTracker(nil)

	if err := tr.Login("bob"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := tr.Login("bob"); !errors.Is(err, errors.ErrDuplicateUser) {
		t.Errorf("second Login() error = %v, want ErrDuplicateUser", err)
	}

	// The original session is untouched.
	if !tr.IsOnline("bob") {
		t.Error("IsOnline(bob) = false after rejected duplicate")
	}

	// The name is free again after logout.
	tr.Logout("bob")
	if err := tr.Login("bob"); err != nil {
		t.Errorf("re-login after logout error = %v", err)
	}
}

func TestOnlineIsSorted(t *testing.T) {
	tr := NewTracker(nil)
	for _, u := range []string{"zoe", "alice", "mike"} {
		if err := tr.Login(u); err != nil {
			t.Fatalf("Login(%q) error = %v", u, err)
		}
	}

	want := []string{"alice", "mike", "zoe"}
	if got := tr.Online(); !reflect.DeepEqual(got, want) {
		t.Errorf("Online() = %v, want %v", got, want)
	}
}

func TestConcurrentLoginSameName(t *testing.T) {
	tr := NewTracker(nil)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- tr.Login("contested")
		}()
	}
	wg.Wait()
	close(results)

	var accepted int
	for err := range results {
		if err == nil {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted logins = %d, want exactly 1", accepted)
	}
}
