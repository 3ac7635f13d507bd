package domain

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// SourceKind tells how a source reference is acquired.
type SourceKind int

const (
	// SourceLocal is a filesystem path.
	SourceLocal SourceKind = iota
	// SourceRemote is an absolute http or https URL.
	SourceRemote
)

// String returns the lower-case name of the kind.
func (k SourceKind) String() string {
	if k == SourceRemote {
		return "remote"
	}
	return "local"
}

// MinSourceReferenceLength is the shortest accepted source reference.
const MinSourceReferenceLength = 3

var remoteSourceRegex = regexp.MustCompile(`(?i)^https?://`)

// ClassifySource reports whether ref must be downloaded or read from disk.
func ClassifySource(ref string) SourceKind {
	if remoteSourceRegex.MatchString(ref) {
		return SourceRemote
	}
	return SourceLocal
}

// ValidateSourceReference applies the format rule for task creation.
// It does not touch the filesystem or the network.
func ValidateSourceReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return NewValidationError("path", "is required", ErrInvalidSourceReference)
	}

	if len(ref) < MinSourceReferenceLength {
		return NewValidationError("path", "is too short", ErrInvalidSourceReference)
	}

	if ClassifySource(ref) == SourceRemote {
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" {
			return NewValidationError("path", "is not an absolute http(s) URL", ErrInvalidSourceReference)
		}
		if name := path.Base(u.Path); name == "/" || name == "." {
			return NewValidationError("path", "does not name a file", ErrInvalidSourceReference)
		}
		return nil
	}

	if strings.HasSuffix(ref, "/") || strings.HasSuffix(ref, string(filepath.Separator)) {
		return NewValidationError("path", "does not name a file", ErrInvalidSourceReference)
	}

	return nil
}

// SourceFileName returns the base name of the file a reference points to and
// its extension (including the dot). For URLs only the path component counts,
// so query strings never leak into file names.
func SourceFileName(ref string) (name, ext string) {
	base := filepath.Base(ref)
	if ClassifySource(ref) == SourceRemote {
		if u, err := url.Parse(ref); err == nil {
			base = path.Base(u.Path)
		}
	}

	ext = path.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}
