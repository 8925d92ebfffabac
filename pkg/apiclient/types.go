package apiclient

import (
	"encoding/json"
	"fmt"
)

// Status filters upload listings. StatusAll is only valid for listing;
// stored records are always one of the other three.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAll      Status = "all"
)

// Valid reports whether s is an accepted listing filter.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusAll:
		return true
	}
	return false
}

// Decision is a review verdict on a pending upload.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RowList is the parsed file content of an upload. The backend usually sends
// a JSON array, but some deployments relay the stored serialized string
// instead; both decode to the same row sequence. Anything unparsable
// degrades to an empty list so a broken preview never fails the whole
// detail fetch.
type RowList []map[string]any

func (r *RowList) UnmarshalJSON(data []byte) error {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err == nil {
		if rows == nil {
			rows = []map[string]any{}
		}
		*r = rows
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &rows); err == nil && rows != nil {
			*r = rows
			return nil
		}
	}
	*r = RowList{}
	return nil
}

// UploadSummary is one row of an upload listing; file content is only
// present on the detail endpoint.
type UploadSummary struct {
	ID          int     `json:"id"`
	FileName    string  `json:"file_name"`
	FileType    string  `json:"file_type"`
	UploadedBy  string  `json:"uploaded_by"`
	Status      Status  `json:"status"`
	ReviewNotes string  `json:"review_notes"`
	ReviewedBy  string  `json:"reviewed_by"`
	CreatedAt   string  `json:"created_at"`
	ReviewedAt  *string `json:"reviewed_at"`
}

// UploadDetail is the full upload record including the row preview.
type UploadDetail struct {
	UploadSummary
	FileContent RowList `json:"file_content"`
}

// ReviewResult is the backend's response to an approve or reject call.
// AddedCount and Errors are only meaningful for approvals.
type ReviewResult struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	AddedCount int      `json:"added_count"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors"`
}

// LoginResponse is the auth exchange result. Success false carries the
// server's human-readable rejection in Message.
type LoginResponse struct {
	Success  bool
	Message  string
	Username string
	Token    string
}

// UploadRequest submits a new spreadsheet for review. FileContent may be raw
// text, base64, or a data: URL.
type UploadRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	FileType    string `json:"file_type"`
	UploadedBy  string `json:"uploaded_by"`
}

// UploadAck acknowledges a submitted upload.
type UploadAck struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UploadID int    `json:"upload_id"`
}

// APIError is a non-2xx response whose error payload could be decoded.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}
