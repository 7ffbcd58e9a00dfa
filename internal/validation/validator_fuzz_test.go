//go:build go1.18

package validation

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"
)

// FuzzValidateURL checks that URL validation never panics and that anything
// accepted is an absolute http(s) URL within the length limit.
func FuzzValidateURL(f *testing.F) {
	f.Add("https://example.com")
	f.Add("not-a-url")
	f.Add("http://[::1]:80/")
	f.Add("javascript:alert(1)")
	f.Add("http://example.com/\x00")
	f.Add(strings.Repeat("a", 3000))

	v := New()
	f.Fuzz(func(t *testing.T, input string) {
		params, err := v.Validate(ActionCreateWatch, map[string]any{"url": input})
		if err != nil {
			var vErr *Error
			if !errors.As(err, &vErr) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}

		got := params.Get(ParamURL)
		if utf8.RuneCountInString(got) > DefaultMaxURLLength {
			t.Errorf("accepted URL longer than the limit")
		}
		if strings.ContainsRune(got, 0) {
			t.Errorf("accepted URL contains NUL")
		}
		u, perr := url.Parse(got)
		if perr != nil {
			t.Fatalf("accepted URL does not re-parse: %v", perr)
		}
		if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
			t.Errorf("accepted scheme %q", u.Scheme)
		}
		if u.Hostname() == "" {
			t.Errorf("accepted URL without host")
		}
	})
}
