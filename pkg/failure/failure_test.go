package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", &Error{Kind: KindAuthExpired, Status: 401, Step: NoStep})

	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected errors.Is to match AuthExpired")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("did not expect Forbidden match")
	}
	if got := KindOf(err); got != KindAuthExpired {
		t.Fatalf("KindOf = %q, want %q", got, KindAuthExpired)
	}
}

func TestErrorMessageListsFields(t *testing.T) {
	err := &Error{
		Kind:    KindValidationRejected,
		Status:  422,
		Message: "rejected",
		Fields:  map[string]string{"phone": "bad", "email": "taken"},
	}
	want := "validation_rejected (status 422): rejected [fields: email, phone]"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindNone {
		t.Fatalf("KindOf = %q, want none", got)
	}
	if !KindRateLimited.Retryable() || KindForbidden.Retryable() {
		t.Fatalf("unexpected retryable classification")
	}
}
