// Package parser turns raw RFC 5322 messages into the ParsedEmail model.
//
// It stands in for the external parsing collaborator at the raw inbound
// boundary; the rest of the pipeline only ever sees ParsedEmail values.
package parser

import (
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/email"
)

// Parse reads one raw email message and returns its parsed form.
// Parse failures are validation errors: the message is rejected, never
// crashed on.
func Parse(r io.Reader) (*email.ParsedEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, errors.ValidationError("failed to parse message: " + err.Error())
	}

	header := mr.Header

	msg := &email.ParsedEmail{
		Headers:    map[string][]string{},
		ReceivedAt: time.Now(),
	}

	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if to, err := header.AddressList("To"); err == nil {
		msg.To = addressStrings(to)
	}
	if cc, err := header.AddressList("Cc"); err == nil {
		msg.Cc = addressStrings(cc)
	}
	if subject, err := header.Subject(); err == nil {
		msg.Subject = subject
	}
	if id, err := header.MessageID(); err == nil {
		msg.MessageID = id
	}
	if date, err := header.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date
	}

	fields := header.Fields()
	for fields.Next() {
		key := fields.Key()
		if value, err := fields.Text(); err == nil {
			msg.Headers[key] = append(msg.Headers[key], value)
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ValidationError("failed to read message part: " + err.Error())
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/html"):
				msg.HTMLBody = string(body)
			default:
				if msg.TextBody == "" {
					msg.TextBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			msg.Attachments = append(msg.Attachments, email.AttachmentMeta{
				Filename:    filename,
				ContentType: contentType,
				Size:        size,
			})
		}
	}

	if len(msg.To) == 0 {
		return nil, errors.ValidationError("message has no recipients")
	}

	return msg, nil
}

func addressStrings(addresses []*mail.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
