package barney

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundErrors(t *testing.T) {
	plain := NotFound()
	if plain.Error() != "Module not found" {
		t.Fatalf("unexpected default message %q", plain.Error())
	}
	if !IsNotFound(plain) || !errors.Is(plain, ErrNotFound) {
		t.Fatalf("expected NotFound to match ErrNotFound")
	}

	named := NotFoundFor("./x")
	if named.Error() != `Cannot find module: "./x"` {
		t.Fatalf("unexpected message %q", named.Error())
	}

	wrapped := fmt.Errorf("loading: %w", named)
	if ErrorCode(wrapped) != CodeModuleNotFound {
		t.Fatalf("expected code through wrapping, got %q", ErrorCode(wrapped))
	}
	if ErrorCode(errors.New("other")) != "" || ErrorCode(nil) != "" {
		t.Fatalf("expected empty code for uncoded errors")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("unrelated error matched ErrNotFound")
	}
}

func TestRegistrationErrorMessage(t *testing.T) {
	err := registrationError("hook", "./x", ErrInvalidTarget)
	if err.Error() != `barney: invalid module (op=hook target="./x")` {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected unwrap to ErrInvalidTarget")
	}
	if registrationError("hook", "", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}
