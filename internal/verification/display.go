package verification

import (
	"certchain/internal/certificate"
	"certchain/internal/ledger"
)

// ExplorerBaseURL prefixes transaction links shown to verifiers.
const ExplorerBaseURL = "https://etherscan.io/tx/"

// Display placeholders for ledger fields that came back empty.
const (
	DefaultStudentName   = "Student Name"
	DefaultCourseName    = "Course Name"
	DefaultIssueDate     = "Issue Date"
	DefaultInstitution   = "University Name"
	DefaultProficiencies = "-"
	DefaultGrade         = "Merit"
	DefaultDepartment    = "Department of Computer Science"
)

// Details is a verified record prepared for a verifier-facing view.
type Details struct {
	StudentName   string `json:"student_name"`
	CourseName    string `json:"course_name"`
	IssueDate     string `json:"issue_date"`
	Institution   string `json:"institution"`
	Department    string `json:"department"`
	Proficiencies string `json:"proficiencies"`
	Grade         string `json:"grade"`
}

// DisplayDetails fills empty fields with display placeholders. The record is
// not modified.
func DisplayDetails(r certificate.Record) Details {
	return Details{
		StudentName:   orDefault(r.StudentName, DefaultStudentName),
		CourseName:    orDefault(r.CourseName, DefaultCourseName),
		IssueDate:     orDefault(r.IssueDate, DefaultIssueDate),
		Institution:   orDefault(r.Institution, DefaultInstitution),
		Department:    orDefault(r.Department, DefaultDepartment),
		Proficiencies: orDefault(certificate.JoinProficiencies(r.Proficiencies), DefaultProficiencies),
		Grade:         orDefault(string(r.Grade), DefaultGrade),
	}
}

// AbbreviateRef shortens a transaction hash to its first 10 and last 8
// characters. Short refs are returned unchanged.
func AbbreviateRef(ref ledger.TransactionRef) string {
	s := ref.String()
	if len(s) <= 18 {
		return s
	}
	return s[:10] + "..." + s[len(s)-8:]
}

// ExplorerURL links a transaction on the block explorer, or returns "" for
// an absent ref.
func ExplorerURL(ref ledger.TransactionRef) string {
	if ref == "" {
		return ""
	}
	return ExplorerBaseURL + ref.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
