package certificate

import (
	"slices"
	"time"

	dErrors "certchain/pkg/domain-errors"
)

// Field names a draft field. The names are the issuer form keys.
type Field string

const (
	FieldCertificateID Field = "certificateId"
	FieldStudentID     Field = "uid"
	FieldStudentName   Field = "name"
	FieldCourseName    Field = "course"
	FieldInstitution   Field = "org"
	FieldDepartment    Field = "department"
	FieldIPFSHash      Field = "ipfs"
	FieldProficiencies Field = "proficiencies"
	FieldIssueDate     Field = "issueDate"
	FieldGrade         Field = "grade"
	FieldSignature1    Field = "signature1"
	FieldSignature2    Field = "signature2"
)

// Fields lists every editable field in form order.
var Fields = []Field{
	FieldCertificateID, FieldStudentID, FieldStudentName, FieldCourseName,
	FieldInstitution, FieldDepartment, FieldProficiencies, FieldIssueDate,
	FieldIPFSHash, FieldGrade, FieldSignature1, FieldSignature2,
}

// Defaults pre-fill a new draft with the issuing institution's standing values.
type Defaults struct {
	Institution string
	Department  string
	Signatories Signatories
	Grade       Grade
}

// Draft is the in-progress certificate edited by an issuer. Struct tags drive
// submission validation; the `field` tag names the form key reported back.
type Draft struct {
	CertificateID string      `json:"certificateId" field:"certificateId" validate:"notblank"`
	StudentID     string      `json:"uid" field:"uid"`
	StudentName   string      `json:"name" field:"name" validate:"notblank"`
	CourseName    string      `json:"course" field:"course" validate:"notblank"`
	Institution   string      `json:"org" field:"org"`
	Department    string      `json:"department" field:"department"`
	IPFSHash      string      `json:"ipfs" field:"ipfs"`
	Proficiencies []string    `json:"proficiencies" field:"proficiencies"`
	IssueDate     string      `json:"issueDate" field:"issueDate" validate:"omitempty,datetime=2006-01-02"`
	Grade         Grade       `json:"grade" field:"grade" validate:"omitempty,oneof=Distinction Merit Pass Honors"`
	Signatories   Signatories `json:"signatories" field:"signatories"`
}

// NewDraft creates a draft with a freshly generated identifier and the
// institution defaults. The identifier is generated here and nowhere else.
func NewDraft(ids IDGenerator, defaults Defaults, now time.Time) Draft {
	grade := defaults.Grade
	if grade == "" {
		grade = GradeDistinction
	}
	return Draft{
		CertificateID: ids.NewCertificateID(),
		Institution:   defaults.Institution,
		Department:    defaults.Department,
		IssueDate:     now.Format(DateLayout),
		Grade:         grade,
		Signatories:   defaults.Signatories,
	}
}

// Update replaces a single field. Only the value's own syntax is checked;
// there is no cross-field validation at write time.
func (d *Draft) Update(field Field, value string) error {
	switch field {
	case FieldCertificateID:
		d.CertificateID = value
	case FieldStudentID:
		d.StudentID = value
	case FieldStudentName:
		d.StudentName = value
	case FieldCourseName:
		d.CourseName = value
	case FieldInstitution:
		d.Institution = value
	case FieldDepartment:
		d.Department = value
	case FieldIPFSHash:
		d.IPFSHash = value
	case FieldProficiencies:
		d.Proficiencies = ParseProficiencies(value)
	case FieldIssueDate:
		if value != "" {
			if _, err := time.Parse(DateLayout, value); err != nil {
				return dErrors.New(dErrors.CodeInvalidInput, "issueDate must be YYYY-MM-DD")
			}
		}
		d.IssueDate = value
	case FieldGrade:
		g, err := ParseGrade(value)
		if err != nil {
			return err
		}
		d.Grade = g
	case FieldSignature1:
		d.Signatories.CourseDirector = value
	case FieldSignature2:
		d.Signatories.Registrar = value
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown field: "+string(field))
	}
	return nil
}

// Value returns the form representation of a field.
func (d Draft) Value(field Field) (string, bool) {
	switch field {
	case FieldCertificateID:
		return d.CertificateID, true
	case FieldStudentID:
		return d.StudentID, true
	case FieldStudentName:
		return d.StudentName, true
	case FieldCourseName:
		return d.CourseName, true
	case FieldInstitution:
		return d.Institution, true
	case FieldDepartment:
		return d.Department, true
	case FieldIPFSHash:
		return d.IPFSHash, true
	case FieldProficiencies:
		return JoinProficiencies(d.Proficiencies), true
	case FieldIssueDate:
		return d.IssueDate, true
	case FieldGrade:
		return string(d.Grade), true
	case FieldSignature1:
		return d.Signatories.CourseDirector, true
	case FieldSignature2:
		return d.Signatories.Registrar, true
	default:
		return "", false
	}
}

// Clone returns a deep copy, used to freeze the draft at submission.
func (d Draft) Clone() Draft {
	d.Proficiencies = slices.Clone(d.Proficiencies)
	return d
}

// Record converts the draft into the certificate record it describes.
func (d Draft) Record() Record {
	return Record{
		CertificateID: d.CertificateID,
		StudentID:     d.StudentID,
		StudentName:   d.StudentName,
		CourseName:    d.CourseName,
		Institution:   d.Institution,
		Department:    d.Department,
		IPFSHash:      d.IPFSHash,
		Proficiencies: slices.Clone(d.Proficiencies),
		IssueDate:     d.IssueDate,
		Grade:         d.Grade,
		Signatories:   d.Signatories,
	}
}
