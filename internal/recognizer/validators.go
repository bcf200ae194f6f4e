package recognizer

import "strings"

// Luhn reports whether the digits in text satisfy the Luhn checksum.
// Non-digit separators (spaces, dashes) are ignored.
func Luhn(text string) bool {
	var digits []int
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 12 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IBAN reports whether text is a structurally valid IBAN per the ISO 13616
// mod-97 check. Spaces are ignored.
func IBAN(text string) bool {
	s := strings.ToUpper(strings.ReplaceAll(text, " ", ""))
	if len(s) < 15 || len(s) > 34 {
		return false
	}

	// Move the country code and check digits to the end.
	rearranged := s[4:] + s[:4]

	// Compute mod 97 incrementally; letters map to 10..35.
	rem := 0
	for _, r := range rearranged {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
			rem = (rem*10 + v) % 97
		case r >= 'A' && r <= 'Z':
			v = int(r-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

// SwissAVS reports whether text is a valid Swiss AVS/AHV number
// (756.XXXX.XXXX.XX) with a correct EAN-13 check digit.
func SwissAVS(text string) bool {
	var digits []int
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 13 {
		return false
	}
	if digits[0] != 7 || digits[1] != 5 || digits[2] != 6 {
		return false
	}

	// EAN-13: weights alternate 1,3 over the first 12 digits.
	sum := 0
	for i := 0; i < 12; i++ {
		if i%2 == 0 {
			sum += digits[i]
		} else {
			sum += digits[i] * 3
		}
	}
	check := (10 - sum%10) % 10
	return digits[12] == check
}
