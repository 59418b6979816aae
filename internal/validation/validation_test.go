package validation

import (
	"errors"
	"testing"
)

type sampleRequest struct {
	Email string `validate:"omitempty,email"`
	Code  string `validate:"required,len=6,numeric"`
}

func TestStruct(t *testing.T) {
	if err := Struct(&sampleRequest{Code: "123456"}); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := Struct(&sampleRequest{Email: "not-an-email", Code: "12ab"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(verr.Fields), verr)
	}
}

func TestStructCodeRules(t *testing.T) {
	bad := []string{"", "12345", "1234567", "abcdef", "12 456"}
	for _, code := range bad {
		if err := Struct(&sampleRequest{Code: code}); err == nil {
			t.Fatalf("code %q should fail validation", code)
		}
	}
}

func TestExactlyOne(t *testing.T) {
	ok := ExactlyOne(map[string]string{"email": "a@b.c", "phone_number": ""})
	if ok != nil {
		t.Fatalf("one present field rejected: %v", ok)
	}

	if err := ExactlyOne(map[string]string{"email": "", "phone_number": ""}); err == nil {
		t.Fatal("zero present fields accepted")
	}
	if err := ExactlyOne(map[string]string{"email": "a@b.c", "phone_number": "+254700000000"}); err == nil {
		t.Fatal("two present fields accepted")
	}

	// Whitespace does not count as presence.
	if err := ExactlyOne(map[string]string{"email": "   ", "phone_number": "+254700000000"}); err != nil {
		t.Fatalf("whitespace-only field counted as present: %v", err)
	}
}

func TestExactlyOneDeterministicMessage(t *testing.T) {
	a := ExactlyOne(map[string]string{"email": "", "phone_number": ""})
	b := ExactlyOne(map[string]string{"phone_number": "", "email": ""})
	if a.Error() != b.Error() {
		t.Fatalf("message depends on map order: %q vs %q", a.Error(), b.Error())
	}
}
