package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "lifecycle error",
			code:    "W101",
			wantMsg: "Controller cannot be activated from its current state",
			wantCat: CategoryLifecycle,
		},
		{
			name:    "config error",
			code:    "W201",
			wantMsg: "Invalid configuration file",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "W999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	cause := stderrors.New("boom")
	err := New("W201").WithDetail("weft.yaml").Wrap(cause)

	got := err.Error()
	want := "W201: Invalid configuration file (weft.yaml): boom"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "W201") != nil {
		t.Error("FromError(nil) should return nil")
	}

	orig := New("W202")
	wrapped := fmt.Errorf("loading: %w", orig)
	if got := FromError(wrapped, "W201"); got != orig {
		t.Errorf("FromError should unwrap existing WeftError, got %v", got)
	}

	plain := stderrors.New("plain")
	got := FromError(plain, "W301")
	if got.Code != "W301" || got.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", got)
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New("W302").Wrap(New("W201")))

	if !HasCode(err, "W302") {
		t.Error("expected W302")
	}
	if !HasCode(err, "W201") {
		t.Error("expected nested W201")
	}
	if HasCode(err, "W101") {
		t.Error("did not expect W101")
	}
	if HasCode(stderrors.New("x"), "W101") {
		t.Error("plain error has no code")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("W101").WithSuggestion("Deactivate first")
	out := err.Format()

	for _, want := range []string{"ERROR W101:", "Activation is only valid", "Hint: Deactivate first", "https://weft.dev/docs/errors/W101"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}

	if got := err.FormatCompact(); got != "W101: Controller cannot be activated from its current state" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}

func TestAllCodesRegistered(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template", code)
		}
	}
}
