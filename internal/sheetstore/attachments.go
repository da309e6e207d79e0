package sheetstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// LegacyAttachmentName is the display name given to attachment cells that
// hold a bare URL instead of a JSON list.
const LegacyAttachmentName = "Resultado.pdf"

// attachmentDecoder tries to read an attachments cell. ok is false when the
// decoder does not recognize the cell at all.
type attachmentDecoder func(cell string) (list []records.Attachment, ok bool)

// attachmentDecoders run in order; the first that recognizes the cell wins.
var attachmentDecoders = []attachmentDecoder{
	decodeAttachmentList,
	decodeLegacyURL,
}

func decodeAttachments(cell string) []records.Attachment {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return []records.Attachment{}
	}
	for _, dec := range attachmentDecoders {
		if list, ok := dec(cell); ok {
			return list
		}
	}
	return []records.Attachment{}
}

// decodeAttachmentList reads the JSON array written by encodeAttachments.
func decodeAttachmentList(cell string) ([]records.Attachment, bool) {
	if !strings.HasPrefix(cell, "[") {
		return nil, false
	}
	var list []records.Attachment
	if err := json.Unmarshal([]byte(cell), &list); err != nil {
		return nil, false
	}
	out := make([]records.Attachment, 0, len(list))
	for _, a := range list {
		if strings.TrimSpace(a.URL) == "" {
			continue
		}
		out = append(out, a)
	}
	return out, true
}

// decodeLegacyURL handles rows written before attachments were a list.
func decodeLegacyURL(cell string) ([]records.Attachment, bool) {
	if !strings.HasPrefix(cell, "http") || strings.ContainsAny(cell, " \n\t") {
		return nil, false
	}
	return []records.Attachment{{URL: cell, Name: LegacyAttachmentName}}, true
}

func encodeAttachments(list []records.Attachment) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	for i, a := range list {
		if strings.TrimSpace(a.URL) == "" {
			return "", fmt.Errorf("%w: attachment %d has no url", ErrInvalidRecord, i)
		}
	}
	// URLs carry query strings; keep & < > literal in the cell.
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return "", fmt.Errorf("%w: encode attachments: %v", ErrInvalidRecord, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
