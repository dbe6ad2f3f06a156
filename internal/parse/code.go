package parse

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// KeyKind tells the store which column a lookup key refers to.
type KeyKind string

const (
	// KeyAny matches either a check-in code or a registration id.
	KeyAny          KeyKind = "any"
	KeyCode         KeyKind = "code"
	KeyRegistration KeyKind = "registration"
)

var (
	prefixRe     = regexp.MustCompile(`(?i)^(SE|REG)\s*:\s*(.+)$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ErrEmptyCode is returned for a payload with nothing to look up.
var ErrEmptyCode = errors.New("empty check-in code")

// ParsedCode is a scanned or typed payload reduced to a lookup key.
type ParsedCode struct {
	Key  string
	Kind KeyKind
}

// ParseCode normalizes what a scanner or the keyboard produced. Accepted
// forms: the bare code, "SE:<code>", "REG:<registration id>", or a URL that
// carries code=, registrationId= or regId= (falling back to its last path
// segment).
func ParseCode(raw string) (ParsedCode, error) {
	// Keyboard-wedge scanners may add a trailing CR/LF or tabs.
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(raw, " "))
	if s == "" {
		return ParsedCode{}, ErrEmptyCode
	}

	if m := prefixRe.FindStringSubmatch(s); m != nil {
		key := strings.TrimSpace(m[2])
		if strings.EqualFold(m[1], "REG") {
			return ParsedCode{Key: key, Kind: KeyRegistration}, nil
		}
		return ParsedCode{Key: key, Kind: KeyCode}, nil
	}

	if u, ok := asURL(s); ok {
		q := u.Query()
		for _, name := range []string{"registrationId", "regId"} {
			if v := strings.TrimSpace(q.Get(name)); v != "" {
				return ParsedCode{Key: v, Kind: KeyRegistration}, nil
			}
		}
		if v := strings.TrimSpace(q.Get("code")); v != "" {
			return ParsedCode{Key: v, Kind: KeyCode}, nil
		}
		if seg := path.Base(strings.TrimRight(u.Path, "/")); seg != "" && seg != "." && seg != "/" {
			return ParsedCode{Key: seg, Kind: KeyAny}, nil
		}
		return ParsedCode{}, ErrEmptyCode
	}

	return ParsedCode{Key: s, Kind: KeyAny}, nil
}

func asURL(s string) (*url.URL, bool) {
	if !strings.Contains(s, "://") {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}
