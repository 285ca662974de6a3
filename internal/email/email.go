// Package email defines the parsed email data model consumed by the
// dispatch pipeline. Values are built once by the upstream parser and
// treated as read-only from then on.
package email

import "time"

// ParsedEmail represents one inbound email after MIME parsing.
type ParsedEmail struct {
	MessageID   string              `json:"message_id"`
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Cc          []string            `json:"cc,omitempty"`
	Subject     string              `json:"subject"`
	TextBody    string              `json:"text_body,omitempty"`
	HTMLBody    string              `json:"html_body,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Attachments []AttachmentMeta    `json:"attachments,omitempty"`
	ReceivedAt  time.Time           `json:"received_at"`
}

// AttachmentMeta describes an attachment without carrying its content.
// The dispatch payload only needs the metadata.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
