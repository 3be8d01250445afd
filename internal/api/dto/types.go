package dto

import (
	"bytes"
	"strconv"
	"strings"
)

// FormBool accepts HTML checkbox values ("on", "y") as well as JSON booleans.
type FormBool bool

func (b *FormBool) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "t", "true", "on", "y", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

func (b *FormBool) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	return b.UnmarshalText(data)
}

// FormID is an optional numeric id; an empty value decodes to zero.
type FormID int64

func (id *FormID) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*id = FormID(n)
	return nil
}

func (id *FormID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = 0
		return nil
	}
	return id.UnmarshalText(bytes.Trim(data, `"`))
}

// Ptr returns nil for the zero id.
func (id FormID) Ptr() *int64 {
	if id == 0 {
		return nil
	}
	v := int64(id)
	return &v
}
