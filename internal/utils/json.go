package utils

import (
	"bytes"
	"encoding/json"
	"log"
)

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// JSONKind returns the first significant byte of a JSON document ('[', '{', '"', 'n', ...)
// or 0 for an empty document.
func JSONKind(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

// IsJSONNull reports whether data is empty or the literal null.
func IsJSONNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Printf("Error [%s]: %v", context, err)
	}
}
