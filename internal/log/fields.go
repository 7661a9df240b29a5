// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldEntryID   = "entry_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Scan workflow fields
	FieldOperation = "operation"
	FieldOutcome   = "outcome"
	FieldToken     = "token"
	FieldStatus    = "http_status"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
