// Package credential implements the KeyMaster bearer-credential wire format:
// sk-proj.{project_id}.{key_id}.{secret}
package credential

import (
	"errors"
	"strings"
)

// Prefix is the fixed literal that opens every KeyMaster credential string.
const Prefix = "sk-proj"

// ErrInvalidFormat is returned by Parse when s does not have the shape
// "sk-proj.{project_id}.{key_id}.{secret}".
var ErrInvalidFormat = errors.New("credential: invalid format")

// Parsed holds the three identifying segments of a decoded credential.
type Parsed struct {
	ProjectID string
	KeyID     string
	Secret    string
}

// Parse splits a credential string into its project ID, key ID, and secret.
// It does not validate that the project or key exist, only that the string
// has the expected shape.
func Parse(s string) (Parsed, error) {
	parts := strings.SplitN(s, ".", 4)
	if len(parts) != 4 || parts[0] != Prefix {
		return Parsed{}, ErrInvalidFormat
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return Parsed{}, ErrInvalidFormat
	}
	return Parsed{ProjectID: parts[1], KeyID: parts[2], Secret: parts[3]}, nil
}

// Format reassembles a credential string from its parts.
func Format(p Parsed) string {
	return strings.Join([]string{Prefix, p.ProjectID, p.KeyID, p.Secret}, ".")
}
