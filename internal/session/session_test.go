package session

import (
	"testing"
)

func TestBeginRequest_RejectsConcurrent(t *testing.T) {
	s := New()

	if err := s.BeginRequest(); err != nil {
		t.Fatalf("first BeginRequest: %v", err)
	}
	if err := s.BeginRequest(); err == nil {
		t.Fatal("second BeginRequest succeeded while a request is active")
	}

	s.EndRequest()
	if err := s.BeginRequest(); err != nil {
		t.Fatalf("BeginRequest after EndRequest: %v", err)
	}
}

func TestBeginRequest_ClearsStaleCancel(t *testing.T) {
	s := New()

	s.RequestCancel()
	if !s.CancelRequested() {
		t.Fatal("cancel flag not set")
	}

	// A cancel left over from a finished request must not kill the next one.
	if err := s.BeginRequest(); err != nil {
		t.Fatalf("BeginRequest: %v", err)
	}
	if s.CancelRequested() {
		t.Error("stale cancel flag survived BeginRequest")
	}
}

func TestMessages_ReturnsCopy(t *testing.T) {
	s := New()
	s.Append("user", "hello", nil)
	s.Append("assistant", "hi", []string{"http://x/1.png"})

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}

	msgs[0].Text = "mutated"
	if s.Messages()[0].Text != "hello" {
		t.Error("mutating the returned slice changed session state")
	}
}

func TestStore_CreateGetDelete(t *testing.T) {
	st := NewStore()

	s := st.Create()
	if got := st.Get(s.ID); got != s {
		t.Fatalf("Get returned %v, want the created session", got)
	}

	st.Delete(s.ID)
	if st.Get(s.ID) != nil {
		t.Error("session still present after Delete")
	}

	if st.Get(New().ID) != nil {
		t.Error("unknown id returned a session")
	}
}
