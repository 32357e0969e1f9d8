package service

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()
	if s.Authenticated() {
		t.Error("fresh session should not be authenticated")
	}

	s.Init("tok-1", "admin")
	if !s.Authenticated() || !s.Privileged() {
		t.Errorf("admin login should authenticate and privilege the session")
	}

	s.Init("tok-2", "viewer")
	if s.Privileged() {
		t.Error("viewer role should not be privileged")
	}
	if s.Token() != "tok-2" {
		t.Errorf("re-login should replace the token, got %q", s.Token())
	}

	s.Clear()
	if s.Authenticated() || s.Role() != "" {
		t.Error("clear should drop both token and role")
	}
}
