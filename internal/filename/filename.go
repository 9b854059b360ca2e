// Package filename derives the storage namespace of an uploaded file from
// its raw name.
//
// A raw name has the shape company_project_rest, optionally prefixed with
// "nextcloud_" by the sync client. Only the first two underscore separated
// tokens are reserved; the rest is the stored filename and may itself
// contain underscores.
package filename

import (
	"errors"
	"strings"
)

// SyncClientPrefix is prepended to names by the upstream sync client.
const SyncClientPrefix = "nextcloud_"

const separator = "_"

var ErrInvalidFilenameFormat = errors.New("invalid filename format")

// Name is a parsed file name.
type Name struct {
	CompanyID string
	ProjectID string
	Filename  string
}

// Path returns the blob path company/project/filename.
func (n Name) Path() string {
	return n.CompanyID + "/" + n.ProjectID + "/" + n.Filename
}

func (n Name) String() string {
	return n.Path()
}

// Parse splits raw into company, project and filename. Empty segments are
// accepted as empty ids.
func Parse(raw string) (Name, error) {
	raw = strings.TrimPrefix(raw, SyncClientPrefix)

	parts := strings.Split(raw, separator)
	if len(parts) < 3 {
		return Name{}, ErrInvalidFilenameFormat
	}

	return Name{
		CompanyID: parts[0],
		ProjectID: parts[1],
		Filename:  strings.Join(parts[2:], separator),
	}, nil
}

// ParseStrict is Parse that also rejects empty company, project or
// filename segments.
func ParseStrict(raw string) (Name, error) {
	n, err := Parse(raw)
	if err != nil {
		return Name{}, err
	}
	if n.CompanyID == "" || n.ProjectID == "" || n.Filename == "" {
		return Name{}, ErrInvalidFilenameFormat
	}
	return n, nil
}

// Parser picks Parse or ParseStrict.
type Parser func(raw string) (Name, error)

func NewParser(strict bool) Parser {
	if strict {
		return ParseStrict
	}
	return Parse
}
