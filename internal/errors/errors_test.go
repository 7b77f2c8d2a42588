package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/url"
	"strings"
	"testing"

	"github.com/royals-league/rally/pkg/optimistic"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "R004",
			wantMsg: "Missing page URL",
			wantCat: CategoryConfig,
		},
		{
			name:    "commit error",
			code:    "R102",
			wantMsg: "Rejected by server",
			wantCat: CategoryCommit,
		},
		{
			name:    "unknown error code",
			code:    "R999",
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

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown status %q", "X")
	if err.Message != `unknown status "X"` || err.Code != "" {
		t.Errorf("Newf() = %+v", err)
	}
	if err.Error() != `unknown status "X"` {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRallyError_Wrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := New("R105").Wrap(inner).WithSuggestion("Check the backend").WithDetail("more")

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.Error() != "R105: Network error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Suggestion != "Check the backend" || err.Detail != "more" {
		t.Errorf("err = %+v", err)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "R001") != nil {
		t.Error("FromError(nil) should be nil")
	}

	re := New("R002")
	if got := FromError(re, "R001"); got != re {
		t.Error("FromError should return an existing RallyError unchanged")
	}

	wrapped := FromError(stderrors.New("open rally.json: permission denied"), "R002")
	if wrapped.Code != "R002" || wrapped.Wrapped == nil {
		t.Errorf("FromError() = %+v", wrapped)
	}
}

func TestFromCommit(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantDetail string
	}{
		{
			name:       "validation message",
			err:        &optimistic.RejectedError{Status: 400, Message: "Bye week — availability not applicable"},
			wantCode:   "R102",
			wantDetail: "Bye week — availability not applicable",
		},
		{
			name:       "no message",
			err:        &optimistic.RejectedError{Status: 500},
			wantCode:   "R102",
			wantDetail: "The server answered 500.",
		},
		{
			name:       "rate limited",
			err:        &optimistic.RejectedError{Status: 429, Message: "Too many requests"},
			wantCode:   "R104",
			wantDetail: "Too many requests",
		},
		{
			name:       "redirect",
			err:        &optimistic.RejectedError{Status: 302, Location: "https://league.example.com/accounts/login/"},
			wantCode:   "R103",
			wantDetail: "Redirected to https://league.example.com/accounts/login/",
		},
		{
			name:       "missing endpoint",
			err:        &optimistic.ConfigError{What: "availability endpoint"},
			wantCode:   "R101",
			wantDetail: "Missing availability endpoint",
		},
		{
			name:     "timeout",
			err:      &optimistic.TransportError{Err: &url.Error{Op: "Post", URL: "/", Err: context.DeadlineExceeded}},
			wantCode: "R106",
		},
		{
			name:     "network",
			err:      &optimistic.TransportError{Err: stderrors.New("connection refused")},
			wantCode: "R105",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromCommit(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantDetail != "" && got.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", got.Detail, tt.wantDetail)
			}
			if !stderrors.Is(got, tt.err) {
				t.Error("FromCommit should wrap the commit error")
			}
		})
	}

	if FromCommit(nil) != nil {
		t.Error("FromCommit(nil) should be nil")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("R102").WithDetail("Not on this season's roster").WithSuggestion("Ask a captain to add you")
	out := err.Format()
	for _, want := range []string{
		"ERROR R102: Rejected by server",
		"Not on this season's roster",
		"Hint: Ask a captain to add you",
		"Learn more: " + docBase + "r102",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains ANSI codes with colors disabled")
	}

	if got := err.FormatCompact(); got != "R102: Rejected by server" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("R105").Wrap(stderrors.New("dial tcp: refused"))
	var got map[string]string
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("FormatJSON() is not JSON: %v", e)
	}
	if got["code"] != "R105" || got["category"] != "commit" || got["cause"] != "dial tcp: refused" {
		t.Errorf("FormatJSON() = %v", got)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, New("R004"))
	if !strings.Contains(buf.String(), "ERROR R004: Missing page URL") {
		t.Errorf("PrintError(RallyError) = %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("PrintError(error) = %q", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 || codes[0] != "R001" {
		t.Fatalf("GetAllCodes() = %v", codes)
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.DocURL == "" || tmpl.Category == "" {
			t.Errorf("template %s incomplete: %+v", code, tmpl)
		}
	}
}
