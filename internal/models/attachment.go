package models

import "gorm.io/datatypes"

// Attachment references an uploaded image held by the attachment store.
// Lists of attachments are stored as a JSON column on the owning step row.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
}

// Attachments is the JSON column type for attachment lists.
type Attachments = datatypes.JSONSlice[Attachment]

// NonNil returns a, or an empty list when a is nil, so that the column and
// the API never carry a JSON null.
func NonNil(a Attachments) Attachments {
	if a == nil {
		return Attachments{}
	}
	return a
}
