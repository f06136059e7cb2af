// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindInvalid, "bad selector")
	if err.Error() != "bad selector" {
		t.Errorf("expected 'bad selector', got %q", err.Error())
	}

	wrapped := Wrap(errors.New("parse failed"), KindInvalid, "bad selector")
	if wrapped.Error() != "bad selector: parse failed" {
		t.Errorf("expected wrapped message, got %q", wrapped.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindInternal, "should be nil") != nil {
		t.Error("Wrap(nil, ...) must return nil")
	}
	if Wrapf(nil, KindInternal, "should be nil %d", 1) != nil {
		t.Error("Wrapf(nil, ...) must return nil")
	}
}

func TestKindOf(t *testing.T) {
	err := New(KindExhausted, "no free lport")
	if KindOf(err) != KindExhausted {
		t.Errorf("expected KindExhausted, got %v", KindOf(err))
	}

	wrapped := Wrapf(err, KindInternal, "bind failed after %d trials", 16)
	if KindOf(wrapped) != KindInternal {
		t.Errorf("expected outer KindInternal, got %v", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("expected KindUnknown for a non-*Error, got %v", KindOf(errors.New("plain")))
	}
}

func TestIs(t *testing.T) {
	err := New(KindBusy, "laddr pinned")
	if !Is(err, KindBusy) {
		t.Error("expected Is(err, KindBusy) to be true")
	}
	if Is(err, KindExist) {
		t.Error("expected Is(err, KindExist) to be false")
	}
}

func TestWithAttr(t *testing.T) {
	base := New(KindNoService, "unknown vs").(*Error)
	withVS := base.WithAttr("vs_id", "vs-1")
	withBoth := withVS.WithAttr("rs_id", "rs-1")

	if withVS.Attributes["vs_id"] != "vs-1" {
		t.Errorf("expected vs_id attr, got %v", withVS.Attributes)
	}
	if _, ok := base.Attributes["vs_id"]; ok {
		t.Error("WithAttr must not mutate the receiver")
	}
	if withBoth.Attributes["vs_id"] != "vs-1" || withBoth.Attributes["rs_id"] != "rs-1" {
		t.Errorf("expected both attrs on chained WithAttr, got %v", withBoth.Attributes)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInvalid:      "invalid",
		KindNoService:    "no_service",
		KindNotSupported: "not_supported",
		KindExist:        "exist",
		KindNotExist:     "not_exist",
		KindBusy:         "busy",
		KindExhausted:    "resource_exhausted",
		KindOOM:          "oom",
		Kind(999):        "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
