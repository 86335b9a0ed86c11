// Package redact removes secret values from text before it reaches logs or diagnostics.
//
// A Redactor knows the literal secrets of the current run (access token, client secret) and
// replaces every occurrence, including URL-escaped forms and fragments left at the edges of
// truncated output. Credentials embedded in URLs are masked even when they were never
// registered, and an optional gitleaks detection pass catches well-known token formats.
package redact

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Marker replaces every redacted value.
const Marker = "***"

// minFragment is the shortest secret fragment masked at the edge of truncated output.
const minFragment = 4

var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)

// Redactor is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	secrets  []string
	detector *detect.Detector
}

// New returns a Redactor that knows the given secrets. Empty values are ignored.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	r.Add(secrets...)
	return r
}

// Add registers more secrets.
func (r *Redactor) Add(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s == "" {
			continue
		}
		for _, v := range variants(s) {
			if !contains(r.secrets, v) {
				r.secrets = append(r.secrets, v)
			}
		}
	}
	// Longest first so a secret that contains another is replaced whole.
	sort.SliceStable(r.secrets, func(i, j int) bool { return len(r.secrets[i]) > len(r.secrets[j]) })
}

// EnableDetection turns on the gitleaks pass using its default rule set.
func (r *Redactor) EnableDetection() error {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.detector = d
	r.mu.Unlock()
	return nil
}

// Forget drops every registered secret.
func (r *Redactor) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.secrets {
		r.secrets[i] = ""
	}
	r.secrets = nil
}

// String returns s with every known secret, URL credential and detected token masked.
func (r *Redactor) String(s string) string {
	if s == "" || r == nil {
		return s
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Marker)
	}
	s = maskEdges(s, r.secrets)
	s = userinfoPattern.ReplaceAllString(s, "${1}"+Marker+"@")

	if r.detector != nil {
		for _, f := range r.detector.DetectString(s) {
			if f.Secret != "" && f.Secret != Marker {
				s = strings.ReplaceAll(s, f.Secret, Marker)
			}
		}
	}
	return s
}

// Bytes is String for byte slices.
func (r *Redactor) Bytes(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	return []byte(r.String(string(b)))
}

// Strings redacts each element into a new slice.
func (r *Redactor) Strings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.String(s)
	}
	return out
}

// URL masks the userinfo of a URL string without needing a Redactor.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return userinfoPattern.ReplaceAllString(raw, "${1}"+Marker+"@")
	}
	u.User = nil
	s := u.String()
	if i := strings.Index(s, "//"); i >= 0 {
		return s[:i+2] + Marker + "@" + s[i+2:]
	}
	return s
}

// maskEdges handles output that was cut in the middle of a secret: a secret suffix at the very
// start or a secret prefix at the very end of s is masked.
func maskEdges(s string, secrets []string) string {
	for _, secret := range secrets {
		for k := len(secret) - 1; k >= minFragment; k-- {
			if strings.HasPrefix(s, secret[len(secret)-k:]) {
				s = Marker + s[k:]
				break
			}
		}
		for k := len(secret) - 1; k >= minFragment; k-- {
			if strings.HasSuffix(s, secret[:k]) {
				s = s[:len(s)-k] + Marker
				break
			}
		}
	}
	return s
}

func variants(secret string) []string {
	out := []string{secret}
	for _, v := range []string{url.QueryEscape(secret), url.PathEscape(secret)} {
		if v != secret && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
