// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "config has no [[filter]] entries")
	if err.Error() != "config has no [[filter]] entries" {
		t.Errorf("expected 'config has no [[filter]] entries', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to compile config")
	if wrapped.Error() != "failed to compile config: config has no [[filter]] entries" {
		t.Errorf("expected wrapped message with underlying cause, got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindValidation, "unrecognised mode \"drop\"")
	if GetKind(err) != KindValidation {
		t.Errorf("expected KindValidation, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("plain stdlib error")) != KindUnknown {
		t.Errorf("expected KindUnknown for a non-Error, got %v", GetKind(errors.New("plain stdlib error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindValidation, "failed to parse as an IP address")
	err = Attr(err, "field", "src")
	err = Attr(err, "value", "not-an-ip")

	attrs := GetAttributes(err)
	if attrs["field"] != "src" {
		t.Errorf("expected src, got %v", attrs["field"])
	}
	if attrs["value"] != "not-an-ip" {
		t.Errorf("expected not-an-ip, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindInternal, "config compilation failed")
	wrapped = Attr(wrapped, "filter_index", 2)

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "src" || allAttrs["filter_index"] != 2 {
		t.Errorf("missing attributes carried across Wrap: %v", allAttrs)
	}
}

// Code is the interceptor-specific addition over the teacher's error type:
// internal/config relies on it to report one of a closed set of
// ConfigError codes rather than a free-form message.
func TestCode(t *testing.T) {
	err := Attr(New(KindValidation, "config has no [[filter]] entries"), "code", "NoFiltersFound")
	if Code(err) != "NoFiltersFound" {
		t.Errorf("expected NoFiltersFound, got %q", Code(err))
	}

	wrapped := Wrap(err, KindInternal, "load failed")
	if Code(wrapped) != "NoFiltersFound" {
		t.Errorf("expected Code to see through Wrap, got %q", Code(wrapped))
	}

	if Code(errors.New("plain stdlib error")) != "" {
		t.Errorf("expected empty code for a non-Error, got %q", Code(errors.New("plain stdlib error")))
	}
}
