package handlers

import (
	"strings"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessionSigner("test-secret")
	cookie := s.Issue(7, "tester")

	accountID, name, ok := s.Verify(cookie)
	if !ok {
		t.Fatal("freshly issued cookie did not verify")
	}
	if accountID != 7 || name != "tester" {
		t.Errorf("Verify = (%d, %q), want (7, tester)", accountID, name)
	}
}

func TestSessionNameMayContainDelimiter(t *testing.T) {
	s := NewSessionSigner("test-secret")
	cookie := s.Issue(3, "pipe|name|user")

	accountID, name, ok := s.Verify(cookie)
	if !ok {
		t.Fatal("cookie with delimiter in the name did not verify")
	}
	if accountID != 3 || name != "pipe|name|user" {
		t.Errorf("Verify = (%d, %q), want (3, pipe|name|user)", accountID, name)
	}
}

func TestSessionTamperedCookieFails(t *testing.T) {
	s := NewSessionSigner("test-secret")
	cookie := s.Issue(7, "tester")

	tampered := strings.Replace(cookie, "|7|", "|8|", 1)
	if tampered == cookie {
		t.Fatal("could not tamper with cookie payload")
	}
	if _, _, ok := s.Verify(tampered); ok {
		t.Error("tampered cookie verified")
	}
}

func TestSessionWrongKeyFails(t *testing.T) {
	cookie := NewSessionSigner("key-one").Issue(7, "tester")
	if _, _, ok := NewSessionSigner("key-two").Verify(cookie); ok {
		t.Error("cookie signed with a different key verified")
	}
}

func TestSessionGarbageFails(t *testing.T) {
	s := NewSessionSigner("test-secret")
	for _, v := range []string{"", "no-delimiters-here", "deadbeef|short", "||", "sig|token|notanumber|name"} {
		if _, _, ok := s.Verify(v); ok {
			t.Errorf("garbage cookie %q verified", v)
		}
	}
}
