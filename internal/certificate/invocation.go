package certificate

import (
	"fmt"
)

// InvocationArgs is the positional argument tuple of the ledger's
// generateCertificate method:
//
//	(certificateId, studentId, name, course, org, ipfs, proficiencies, issueDate, grade)
//
// The ledger binds by position, so the order is part of the contract.
type InvocationArgs [9]string

// Values returns the tuple as the []any an ABI encoder expects.
func (a InvocationArgs) Values() []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = v
	}
	return out
}

// ToInvocationArgs builds the generateCertificate tuple. The order does not
// depend on the order in which fields were edited.
func (d Draft) ToInvocationArgs() InvocationArgs {
	return InvocationArgs{
		d.CertificateID,
		d.StudentID,
		d.StudentName,
		d.CourseName,
		d.Institution,
		d.IPFSHash,
		JoinProficiencies(d.Proficiencies),
		d.IssueDate,
		string(d.Grade),
	}
}

// RecordFromInvocationArgs decodes a generateCertificate tuple back into a
// record. Department and signatories are not part of the call and stay empty.
func RecordFromInvocationArgs(args []any) (Record, error) {
	if len(args) != len(InvocationArgs{}) {
		return Record{}, fmt.Errorf("generateCertificate takes %d arguments, got %d", len(InvocationArgs{}), len(args))
	}
	var tuple InvocationArgs
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return Record{}, fmt.Errorf("argument %d: expected string, got %T", i, a)
		}
		tuple[i] = s
	}
	return Record{
		CertificateID: tuple[0],
		StudentID:     tuple[1],
		StudentName:   tuple[2],
		CourseName:    tuple[3],
		Institution:   tuple[4],
		IPFSHash:      tuple[5],
		Proficiencies: ParseProficiencies(tuple[6]),
		IssueDate:     tuple[7],
		Grade:         Grade(tuple[8]),
	}, nil
}

// Output names of the ledger's getCertificateData method.
const (
	LedgerName          = "name"
	LedgerCourse        = "course"
	LedgerOrg           = "org"
	LedgerDepartment    = "department"
	LedgerProficiencies = "proficiencies"
	LedgerIssueDate     = "issueDate"
	LedgerGrade         = "grade"
)

// LedgerDataFields lists getCertificateData outputs in declaration order.
var LedgerDataFields = []string{
	LedgerName, LedgerCourse, LedgerOrg, LedgerDepartment,
	LedgerProficiencies, LedgerIssueDate, LedgerGrade,
}

// RecordFromLedger maps getCertificateData outputs onto a record. Values are
// taken verbatim; display defaults are a presentation concern.
func RecordFromLedger(certificateID string, data map[string]string) Record {
	return Record{
		CertificateID: certificateID,
		StudentName:   data[LedgerName],
		CourseName:    data[LedgerCourse],
		Institution:   data[LedgerOrg],
		Department:    data[LedgerDepartment],
		Proficiencies: ParseProficiencies(data[LedgerProficiencies]),
		IssueDate:     data[LedgerIssueDate],
		Grade:         Grade(data[LedgerGrade]),
	}
}

// LedgerData is the inverse of RecordFromLedger.
func (r Record) LedgerData() map[string]string {
	return map[string]string{
		LedgerName:          r.StudentName,
		LedgerCourse:        r.CourseName,
		LedgerOrg:           r.Institution,
		LedgerDepartment:    r.Department,
		LedgerProficiencies: JoinProficiencies(r.Proficiencies),
		LedgerIssueDate:     r.IssueDate,
		LedgerGrade:         string(r.Grade),
	}
}
