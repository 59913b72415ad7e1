package domain

import (
	"slices"
	"strings"
)

// Attachment records a file reference. MIME type and size are caller-supplied.
type Attachment struct {
	ID       AttachmentID `json:"id"`
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	MimeType string       `json:"mime_type,omitempty"`
	Size     int64        `json:"size,omitempty"`
}

// AttachmentInput holds input values for attachment creation.
type AttachmentInput struct {
	ID       AttachmentID
	Name     string
	Path     string
	MimeType string
	Size     int64
}

// NewAttachment validates an attachment. The name defaults to the path's last element.
func NewAttachment(in AttachmentInput) (Attachment, error) {
	if !ValidFileID(string(in.ID)) {
		return Attachment{}, ErrInvalidID
	}
	in.Path = strings.TrimSpace(in.Path)
	if in.Path == "" {
		return Attachment{}, ErrInvalidAttachment
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = in.Path[strings.LastIndexAny(in.Path, `/\`)+1:]
	}
	if in.Name == "" || in.Size < 0 {
		return Attachment{}, ErrInvalidAttachment
	}
	return Attachment{
		ID:       in.ID,
		Name:     in.Name,
		Path:     in.Path,
		MimeType: strings.TrimSpace(in.MimeType),
		Size:     in.Size,
	}, nil
}

// AddAttachment appends an attachment.
func (t *Task) AddAttachment(a Attachment) {
	t.Attachments = append(t.Attachments, a)
}

// RemoveAttachment deletes an attachment.
func (t *Task) RemoveAttachment(id AttachmentID) bool {
	before := len(t.Attachments)
	t.Attachments = slices.DeleteFunc(t.Attachments, func(a Attachment) bool { return a.ID == id })
	return len(t.Attachments) != before
}
