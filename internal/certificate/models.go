// Package certificate holds the certificate draft edited by an issuer and the
// immutable record produced by issuance or verification.
package certificate

import (
	"slices"
	"strings"

	dErrors "certchain/pkg/domain-errors"
)

// Grade is the classification printed on the certificate badge.
type Grade string

const (
	GradeDistinction Grade = "Distinction"
	GradeMerit       Grade = "Merit"
	GradePass        Grade = "Pass"
	GradeHonors      Grade = "Honors"
)

// Grades lists the supported classifications in display order.
var Grades = []Grade{GradeDistinction, GradeMerit, GradePass, GradeHonors}

// ParseGrade validates a grade string. The empty string is accepted and means
// "not set"; the renderer substitutes its placeholder.
func ParseGrade(value string) (Grade, error) {
	if value == "" {
		return "", nil
	}
	for _, g := range Grades {
		if string(g) == value {
			return g, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported grade: "+value)
}

// IDPrefix is the reserved prefix of generated certificate identifiers.
const IDPrefix = "CERT-"

// DateLayout is the calendar date format used on the wire and on the artifact.
const DateLayout = "2006-01-02"

// Signatories are the two named roles signing the certificate.
type Signatories struct {
	CourseDirector string `json:"course_director" field:"signature1"`
	Registrar      string `json:"registrar" field:"signature2"`
}

// Record is a certificate as known to the ledger, plus the presentation-only
// signatories carried over from the draft. Records are values: copying one and
// mutating the copy never affects the original.
type Record struct {
	CertificateID string      `json:"certificate_id"`
	StudentID     string      `json:"student_id,omitempty"`
	StudentName   string      `json:"student_name"`
	CourseName    string      `json:"course_name"`
	Institution   string      `json:"institution"`
	Department    string      `json:"department"`
	IPFSHash      string      `json:"ipfs_hash,omitempty"`
	Proficiencies []string    `json:"proficiencies,omitempty"`
	IssueDate     string      `json:"issue_date"`
	Grade         Grade       `json:"grade"`
	Signatories   Signatories `json:"signatories"`
}

// Equal reports field-wise equality.
func (r Record) Equal(other Record) bool {
	return r.scalars() == other.scalars() && slices.Equal(r.Proficiencies, other.Proficiencies)
}

func (r Record) scalars() [11]string {
	return [11]string{
		r.CertificateID, r.StudentID, r.StudentName, r.CourseName, r.Institution,
		r.Department, r.IPFSHash, r.IssueDate, string(r.Grade),
		r.Signatories.CourseDirector, r.Signatories.Registrar,
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Proficiencies = slices.Clone(r.Proficiencies)
	return r
}

// ParseProficiencies splits the comma-delimited wire form into an ordered list,
// trimming whitespace and dropping empty entries.
func ParseProficiencies(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinProficiencies is the inverse of ParseProficiencies.
func JoinProficiencies(list []string) string {
	return strings.Join(list, ", ")
}
