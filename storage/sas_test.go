package storage

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestAccountSASRequiresScope(t *testing.T) {
	cred := emulatorCred(t)
	expiry := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	cases := []AccountSASOptions{
		{Services: "", ResourceTypes: "co", Permissions: "r", Expiry: expiry},
		{Services: "b", ResourceTypes: "", Permissions: "r", Expiry: expiry},
		{Services: "b", ResourceTypes: "co", Permissions: "", Expiry: expiry},
		{Services: "b", ResourceTypes: "co", Permissions: "r"},
	}
	for i, opts := range cases {
		if _, err := cred.AccountSAS(opts); err != ErrInvalidSASOptions {
			t.Errorf("case %d: err = %v, want ErrInvalidSASOptions", i, err)
		}
	}
}

// TestAccountSASKnownVector pins the signature for a fully specified token.
func TestAccountSASKnownVector(t *testing.T) {
	cred := emulatorCred(t)
	q, err := cred.AccountSAS(AccountSASOptions{
		Services:      "b",
		ResourceTypes: "co",
		Permissions:   "rl",
		Start:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Expiry:        time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Protocol:      "https",
		APIVersion:    "2020-10-02",
	})
	if err != nil {
		t.Fatalf("AccountSAS: %v", err)
	}

	want := map[string]string{
		"sv":  "2020-10-02",
		"ss":  "b",
		"srt": "co",
		"sp":  "rl",
		"st":  "2026-01-01T00:00:00Z",
		"se":  "2026-01-02T00:00:00Z",
		"spr": "https",
		"sig": "7+kP7sARWxtTP4TFjUEmcT7dbe2BRtJaOT56Z1MeH/k=",
	}
	for name, v := range want {
		if got := q.Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
	if q.Get("sip") != "" {
		t.Error("sip should be absent when no IP range is set")
	}
}

// TestAccountSASOptionalFieldsOmitted verifies omitted start/protocol are
// signed as empty slots and left out of the query string.
func TestAccountSASOptionalFieldsOmitted(t *testing.T) {
	cred := emulatorCred(t)
	q, err := cred.AccountSAS(AccountSASOptions{
		Services:      "bq",
		ResourceTypes: "sco",
		Permissions:   "rwdlac",
		Expiry:        time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC),
		APIVersion:    "2020-10-02",
	})
	if err != nil {
		t.Fatalf("AccountSAS: %v", err)
	}
	for _, absent := range []string{"st", "spr", "sip"} {
		if q.Get(absent) != "" {
			t.Errorf("%s should be omitted, got %q", absent, q.Get(absent))
		}
	}
	if got, want := q.Get("sig"), "2FcDJO8zkDVjUuCTF1N/zUjcgI4IdKn0+VulcocyFRM="; got != want {
		t.Errorf("sig = %q, want %q", got, want)
	}
}

func TestAccountSASExpiryNormalizedToUTC(t *testing.T) {
	cred := emulatorCred(t)
	loc := time.FixedZone("UTC+5", 5*3600)
	q, err := cred.AccountSAS(AccountSASOptions{
		Services:      "b",
		ResourceTypes: "o",
		Permissions:   "r",
		Expiry:        time.Date(2026, 1, 2, 5, 0, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("AccountSAS: %v", err)
	}
	if got := q.Get("se"); got != "2026-01-02T00:00:00Z" {
		t.Errorf("se = %q, want UTC-normalized timestamp", got)
	}
}

func TestSignURLPreservesExistingQuery(t *testing.T) {
	cred := emulatorCred(t)
	signed, err := cred.SignURL("https://devstoreaccount1.blob.core.windows.net/c/b?snapshot=2026-01-01T00:00:00Z", AccountSASOptions{
		Services:      "b",
		ResourceTypes: "o",
		Permissions:   "r",
		Expiry:        time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SignURL: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	q := u.Query()
	if q.Get("snapshot") == "" {
		t.Error("pre-existing query parameter dropped")
	}
	if q.Get("sig") == "" || q.Get("se") == "" {
		t.Error("token parameters missing from signed url")
	}
	if !strings.HasPrefix(signed, "https://devstoreaccount1.blob.core.windows.net/c/b?") {
		t.Errorf("unexpected base url in %q", signed)
	}
}
