package gateway

import (
	"regexp"
	"strconv"
	"time"
)

var cvvPattern = regexp.MustCompile(`^[0-9]{3,4}$`)

// ValidateCardNumber checks length and the Luhn checksum of a raw card
// number. Used by callers that collect card data before tokenizing it.
func ValidateCardNumber(number string) bool {
	if len(number) < 12 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// ValidateCVV checks the card verification code format.
func ValidateCVV(cvv string) bool {
	return cvvPattern.MatchString(cvv)
}

// ValidateExpiry checks that month/year form a date that has not passed.
// Accepts one- or two-digit months and four-digit years.
func ValidateExpiry(month, year string, now time.Time) bool {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return false
	}
	if y > now.Year() {
		return true
	}
	return y == now.Year() && m >= int(now.Month())
}

// ValidateCard runs the local pre-flight checks for a tokenized card and
// maps failures into the BadRequest error family, so callers branch on the
// same taxonomy as processor-side rejections.
func ValidateCard(orderTransactionID string, card Card, now time.Time) *Error {
	if card.Token == "" {
		return NewBadRequestError(orderTransactionID, "MISSING_FIELD", "Card token is required")
	}
	if !ValidateExpiry(card.ExpiryMonth, card.ExpiryYear, now) {
		return NewBadRequestError(orderTransactionID, "INVALID_CARD_EXPIRY", "Card expiry date is invalid or in the past")
	}
	return nil
}
