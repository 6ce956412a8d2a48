package kstorerr

import "testing"

func TestNew_FormatsArgs(t *testing.T) {
	err := New(ReqMissingArgs, "group_ids")
	want := `REQ/MISSINGARGS: request is missing required argument "group_ids"`
	if err.Error() != want {
		t.Fatalf("want %q got %q", want, err.Error())
	}
}

func TestNew_UnregisteredCode(t *testing.T) {
	err := New(Code("X/UNKNOWN"))
	if err.Message == "" {
		t.Fatalf("expected a fallback message for an unregistered code")
	}
}

func TestWrap_NilIsNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatalf("Wrap(nil) must be nil")
	}
}

func TestWrap_PassesThroughExistingError(t *testing.T) {
	orig := New(SecretNotFound, 42)
	wrapped := Wrap(orig)
	if wrapped != orig {
		t.Fatalf("Wrap must pass through an existing *Error unchanged")
	}
}

func TestWrap_OpaquesUnknownErrors(t *testing.T) {
	wrapped := Wrap(errStub{})
	if wrapped.Code != CryptoUnspecified {
		t.Fatalf("want CRYPTO/UNSPECIFIED, got %s", wrapped.Code)
	}
}

type errStub struct{}

func (errStub) Error() string { return "some internal detail that must not leak" }
