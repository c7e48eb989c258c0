package unlock

import (
	"fmt"
	"strings"
)

// IMEILength is the number of digits of an IMEI including its check digit.
const IMEILength = 15

// ValidationError reports caller input rejected before any device write.
type ValidationError struct {
	Value   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid IMEI %q: %s", e.Value, e.Problem)
}

// Luhn reports whether s is a non-empty string of ASCII digits with a valid
// Luhn check digit.
func Luhn(s string) bool {
	if s == "" {
		return false
	}
	sum := 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		// every second digit from the right is doubled
		if (len(s)-1-i)%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// ValidateIMEI checks that imei is 15 ASCII digits with a valid check digit.
func ValidateIMEI(imei string) error {
	for _, c := range []byte(imei) {
		if c < '0' || c > '9' {
			return &ValidationError{Value: imei, Problem: "not all digits"}
		}
	}
	if len(imei) != IMEILength {
		return &ValidationError{Value: imei, Problem: fmt.Sprintf("%d digits, want %d", len(imei), IMEILength)}
	}
	if !Luhn(imei) {
		return &ValidationError{Value: imei, Problem: "Luhn checksum mismatch"}
	}
	return nil
}

// EncodeIMEI renders an IMEI as the argument of AT!NVENCRYPTIMEI: a zero
// digit is appended and the 16 digits are written as 8 comma separated pairs.
func EncodeIMEI(imei string) (string, error) {
	if err := ValidateIMEI(imei); err != nil {
		return "", err
	}
	padded := imei + "0"
	groups := make([]string, 0, len(padded)/2)
	for i := 0; i < len(padded); i += 2 {
		groups = append(groups, padded[i:i+2])
	}
	return strings.Join(groups, ","), nil
}
