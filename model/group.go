// model/group.go
package model

import (
	"strings"
	"time"
)

// RootStemName is the name of the top of the registry namespace.
const RootStemName = ""

// NameSeparator delimits the path segments of a fully qualified name.
const NameSeparator = ":"

// Group is a group in the source registry, identified by its fully
// qualified name (e.g. "science:physics-majors").
type Group struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DisplayExtension string    `json:"display_extension"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ParentStemName returns the name of the stem the group lives under.
func (g *Group) ParentStemName() string {
	return parentName(g.Name)
}

// Stem is an organizational unit of the registry namespace.
type Stem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// IsRoot reports whether the stem is the top of the namespace.
func (s *Stem) IsRoot() bool {
	return s.Name == RootStemName
}

// ParentStemName returns the name of the enclosing stem. The root stem has
// no parent; callers must check IsRoot first.
func (s *Stem) ParentStemName() string {
	return parentName(s.Name)
}

func parentName(name string) string {
	idx := strings.LastIndex(name, NameSeparator)
	if idx < 0 {
		return RootStemName
	}
	return name[:idx]
}

// Subject is a person (or service principal) known to the source registry.
type Subject struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AttributeValue returns the named subject attribute or "" when unset.
func (s *Subject) AttributeValue(name string) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes[name]
}

// Member types as recorded by the registry.
const (
	MemberTypePerson = "person"
	MemberTypeGroup  = "group"
)

// Member is a membership record of a registry group.
type Member struct {
	SubjectID string `json:"subject_id"`
	SourceID  string `json:"source_id"`
	Type      string `json:"type"`
}
