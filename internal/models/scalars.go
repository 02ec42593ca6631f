package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"peoplemeet-client/internal/utils"
)

// The remote API is loose with scalar types: ids and flags arrive as numbers
// or numeric strings, coordinates as numbers, strings or null. These types
// accept every observed encoding and always marshal back to numbers.

// ID identifies a user or a message.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil || isNull {
		*id = 0
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a user supplied id such as a CLI argument.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

// Flag is a 0|1 field such as is_read or is_online.
type Flag int

func (f *Flag) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil || isNull {
		*f = 0
		return err
	}
	switch s {
	case "true", "1":
		*f = 1
	case "false", "0", "":
		*f = 0
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid flag %q", s)
		}
		if n != 0 {
			*f = 1
		} else {
			*f = 0
		}
	}
	return nil
}

// Bool reports whether the flag is set.
func (f Flag) Bool() bool { return f == 1 }

// FlagOf converts a bool to a Flag.
func FlagOf(b bool) Flag {
	if b {
		return 1
	}
	return 0
}

// NullInt is an optional integer such as age.
type NullInt struct {
	Value int
	Valid bool
}

// IntOf returns a valid NullInt.
func IntOf(v int) NullInt { return NullInt{Value: v, Valid: true} }

func (n *NullInt) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil {
		return err
	}
	if isNull || s == "" {
		*n = NullInt{}
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*n = NullInt{Value: v, Valid: true}
	return nil
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

func (n NullInt) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.Itoa(n.Value)
}

// Coordinate is a latitude or longitude in degrees, possibly absent.
type Coordinate struct {
	Value float64
	Valid bool
}

// CoordOf returns a valid Coordinate.
func CoordOf(v float64) Coordinate { return Coordinate{Value: v, Valid: true} }

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil {
		return err
	}
	if isNull || s == "" {
		*c = Coordinate{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q", s)
	}
	*c = Coordinate{Value: v, Valid: true}
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'f', -1, 64)), nil
}

func (c Coordinate) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// scalarText unwraps a JSON number, string, bool or null into its text form.
func scalarText(data []byte) (text string, isNull bool, err error) {
	if utils.IsJSONNull(data) {
		return "", true, nil
	}
	s := strings.TrimSpace(string(data))
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return "", false, err
		}
		return strings.TrimSpace(str), false, nil
	}
	if s[0] == '{' || s[0] == '[' {
		return "", false, fmt.Errorf("expected scalar, got %s", s)
	}
	return s, false, nil
}
