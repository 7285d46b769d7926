package analysis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var errNotDataURI = errors.New("not a base64 data uri")

// EncodeDataURI builds "data:<mime>;base64,<payload>".
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURI
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return "", nil, errNotDataURI
	}
	mimeType := params[0]
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty data uri payload")
	}
	return mimeType, data, nil
}
