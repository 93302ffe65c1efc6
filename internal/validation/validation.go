package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength     = 24
	MaxPasswordLength = 72
	MaxEmailLength    = 254
	MaxDeviceIDLength = 128
	MaxChatLength     = 500
	MaxPacketSize     = 64 * 1024
)

var (
	ErrPacketTooLarge = errors.New("packet too large")
	ErrPacketEmpty    = errors.New("packet empty")
)

// IsValidName accepts 1..24 letters, digits, '-' and '_'.
func IsValidName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// IsValidPassword bounds passwords to what bcrypt can hash.
func IsValidPassword(password string) bool {
	return password != "" && len(password) <= MaxPasswordLength
}

func IsValidEmail(email string) bool {
	if email == "" {
		return true
	}
	if len(email) > MaxEmailLength || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}

func IsValidDeviceID(id string) bool {
	return len(id) <= MaxDeviceIDLength
}

// SanitizeChat trims text and strips control characters. It reports false
// when nothing printable is left or the text is too long.
func SanitizeChat(text string) (string, bool) {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxChatLength {
		return "", false
	}
	return text, true
}

func IsValidFacing(direction int) bool {
	return direction >= 0 && direction <= 3
}

// IsSingleStep reports whether (x2, y2) is exactly one tile from (x1, y1)
// along an axis.
func IsSingleStep(x1, y1, x2, y2 int) bool {
	dx := x2 - x1
	dy := y2 - y1
	return (dx == 0 && (dy == 1 || dy == -1)) || (dy == 0 && (dx == 1 || dx == -1))
}

func ValidatePacketSize(data []byte) error {
	if len(data) == 0 {
		return ErrPacketEmpty
	}
	if len(data) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	return nil
}
