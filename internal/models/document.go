package models

import (
	"slices"
	"time"
)

type DocumentType string

const (
	DocumentTypeAdministrativeNote DocumentType = "ADMINISTRATIVE_NOTE"
	DocumentTypeCircular           DocumentType = "CIRCULAR"
	DocumentTypeNoteService        DocumentType = "NOTE_SERVICE"
	DocumentTypeReport             DocumentType = "REPORT"
	DocumentTypeOther              DocumentType = "OTHER"
)

var DocumentTypes = []DocumentType{
	DocumentTypeAdministrativeNote,
	DocumentTypeCircular,
	DocumentTypeNoteService,
	DocumentTypeReport,
	DocumentTypeOther,
}

// ParseDocumentType maps free-form input onto a known type, falling back to
// OTHER.
func ParseDocumentType(s string) DocumentType {
	for _, t := range DocumentTypes {
		if string(t) == s {
			return t
		}
	}
	return DocumentTypeOther
}

type Visibility string

const (
	VisibilityPublic         Visibility = "PUBLIC"
	VisibilityAdministration Visibility = "ADMINISTRATION"
	VisibilityTeachers       Visibility = "TEACHERS"
	VisibilityStudents       Visibility = "STUDENTS"
	VisibilityRestricted     Visibility = "RESTRICTED"
)

// ParseVisibility defaults to RESTRICTED for unknown input.
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityAdministration, VisibilityTeachers, VisibilityStudents, VisibilityRestricted:
		return Visibility(s)
	default:
		return VisibilityRestricted
	}
}

// visibleTo lists the roles, besides Admin and the creator, that may read a
// document at each level.
var visibleTo = map[Visibility][]Role{
	VisibilityPublic:         Roles,
	VisibilityAdministration: {RoleAdministration, RoleFormationManager},
	VisibilityTeachers:       {RoleTeacher, RoleFormationManager},
	VisibilityStudents:       {RoleStudent},
	VisibilityRestricted:     nil,
}

type Document struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Content           string       `json:"content"`
	Type              DocumentType `json:"type"`
	Visibility        Visibility   `json:"visibilityLevel"`
	Reference         string       `json:"reference,omitempty"`
	FilePath          string       `json:"filePath,omitempty"`
	FileName          string       `json:"fileName,omitempty"`
	ContentType       string       `json:"contentType,omitempty"`
	SizeBytes         int64        `json:"sizeBytes,omitempty"`
	CreatedBy         string       `json:"createdById"`
	CreatedByUsername string       `json:"createdBy"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

func (d Document) HasFile() bool {
	return d.FilePath != ""
}

// AuthoredBy reports whether id created the document. Authorship is
// decided by principal id only.
func (d Document) AuthoredBy(id Identity) bool {
	return d.CreatedBy != "" && d.CreatedBy == id.PrincipalID
}

// ReadableBy reports whether the caller may see the document.
func (d Document) ReadableBy(id Identity) bool {
	if id.IsAdmin() || d.AuthoredBy(id) {
		return true
	}
	return id.HasRole(visibleTo[d.Visibility]...)
}

// VisibleLevels returns the visibility levels a role can read regardless of
// authorship.
func VisibleLevels(role Role) []Visibility {
	var out []Visibility
	for level, roles := range visibleTo {
		for _, r := range roles {
			if r == role {
				out = append(out, level)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}
