package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric field received from the WattWise API. The API is not
// strict about its numeric columns (they come straight out of dataframes) so
// decoding never fails: anything that cannot be read as a finite number
// decodes to 0.
type Number float64

// Float returns n as a float64.
func (n Number) Float() float64 {
	return float64(n)
}

// UnmarshalJSON implements json.Unmarshaler. It accepts numbers, numeric
// strings and booleans. null, empty strings, objects, arrays, NaN and
// infinities decode to 0.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*n = parseNumber(s)
	case 't':
		if string(b) == "true" {
			*n = 1
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*n = parseNumber(string(b))
	}
	return nil
}

func parseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Number(f)
}
