package gmail

import (
	"encoding/base64"
	"errors"
	"path"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// csvParts walks a MIME part tree depth-first and returns every part whose
// filename ends in .csv, in document order.
func csvParts(part *gmailv1.MessagePart) []*gmailv1.MessagePart {
	if part == nil {
		return nil
	}
	var out []*gmailv1.MessagePart
	if isCSVFilename(part.Filename) {
		out = append(out, part)
	}
	for _, sub := range part.Parts {
		out = append(out, csvParts(sub)...)
	}
	return out
}

func isCSVFilename(name string) bool {
	return strings.EqualFold(path.Ext(strings.TrimSpace(name)), ".csv")
}

var errEmptyBody = errors.New("empty attachment body")

// decodeBase64URL decodes Gmail body data, which is base64url and usually unpadded.
func decodeBase64URL(data string) ([]byte, error) {
	if data == "" {
		return nil, errEmptyBody
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	b, err = base64.RawURLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	// Some payloads arrive in the standard alphabet.
	if b, stdErr := base64.StdEncoding.DecodeString(data); stdErr == nil {
		return b, nil
	}
	return nil, err
}
