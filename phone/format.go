package phone

import "fmt"

// Format renders a phone number for display using the country's grouping.
// Numbers whose length does not match the country's dedicated grouping, and
// numbers for unsupported countries, come back as bare digits. Formatting is
// idempotent on digit-only input of the expected length.
func Format(raw, countryCode string) string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return cleaned
	}
	if _, ok := rules[countryCode]; !ok {
		return cleaned
	}

	n := len(cleaned)

	switch countryCode {
	case "US", "CA":
		if n == 10 {
			return fmt.Sprintf("(%s) %s-%s", cleaned[:3], cleaned[3:6], cleaned[6:])
		}

	case "IN":
		if n == 10 {
			return cleaned[:5] + " " + cleaned[5:]
		}

	case "GB":
		if n == 10 || n == 11 {
			return cleaned[:4] + " " + cleaned[4:7] + " " + cleaned[7:]
		}

	case "AU":
		if n == 9 {
			return cleaned[:3] + " " + cleaned[3:6] + " " + cleaned[6:]
		}

	case "DE":
		if n >= 10 {
			return cleaned[:3] + " " + cleaned[3:]
		}

	case "FR":
		if n == 10 {
			return fmt.Sprintf("%s %s %s %s %s", cleaned[:2], cleaned[2:4], cleaned[4:6], cleaned[6:8], cleaned[8:])
		}

	case "BR":
		if n == 11 {
			return fmt.Sprintf("(%s) %s-%s", cleaned[:2], cleaned[2:7], cleaned[7:])
		}
		if n == 10 {
			return fmt.Sprintf("(%s) %s-%s", cleaned[:2], cleaned[2:6], cleaned[6:])
		}

	case "MX":
		if n == 10 {
			return cleaned[:3] + " " + cleaned[3:6] + " " + cleaned[6:]
		}

	case "JP":
		if n == 11 {
			return cleaned[:3] + "-" + cleaned[3:7] + "-" + cleaned[7:]
		}
		if n == 10 {
			return cleaned[:3] + "-" + cleaned[3:6] + "-" + cleaned[6:]
		}

	case "CN":
		if n == 11 {
			return cleaned[:3] + " " + cleaned[3:7] + " " + cleaned[7:]
		}

	case "SG", "NO", "DK":
		if n == 8 {
			return cleaned[:4] + " " + cleaned[4:]
		}

	default:
		return defaultFormat(cleaned)
	}

	return cleaned
}

// defaultFormat groups digits for countries that have a rule entry but no
// dedicated grouping above: two groups up to 8 digits, three groups from 10.
func defaultFormat(cleaned string) string {
	n := len(cleaned)
	switch {
	case n == 6:
		return cleaned[:3] + " " + cleaned[3:]
	case n == 7:
		return cleaned[:4] + " " + cleaned[4:]
	case n == 8:
		return cleaned[:4] + " " + cleaned[4:]
	case n >= 10:
		return cleaned[:3] + " " + cleaned[3:6] + " " + cleaned[6:]
	default:
		// 9 digits and anything under 6 have no grouping.
		return cleaned
	}
}
