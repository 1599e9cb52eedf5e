package errors

import (
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Fatal("wrapping nil should return nil")
	}

	base := New("boom")
	wrapped := Wrap(base, "capture failed")
	if wrapped.Error() != "capture failed: boom" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match its cause")
	}
}

func TestWrapf(t *testing.T) {
	base := New("boom")
	wrapped := Wrapf(base, "shot %d of %d", 2, 3)
	if wrapped.Error() != "shot 2 of 3: boom" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}

type codeErr struct{ code int }

func (c *codeErr) Error() string { return fmt.Sprintf("code %d", c.code) }

func TestAs(t *testing.T) {
	err := Wrap(&codeErr{code: 503}, "render")
	var target *codeErr
	if !As(err, &target) {
		t.Fatal("expected As to find codeErr")
	}
	if target.code != 503 {
		t.Errorf("got code %d", target.code)
	}
}
