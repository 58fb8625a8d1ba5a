package phone

import "regexp"

// rules holds the numbering plan for every supported country.
// The table is populated once at init and never mutated afterwards.
var rules = map[string]Rule{
	"US": {Name: "United States", Code: "US", DialCode: "+1", MinLength: 10, MaxLength: 10, Pattern: `^[2-9]\d{2}[2-9]\d{2}\d{4}$`, Format: "(XXX) XXX-XXXX"},
	"CA": {Name: "Canada", Code: "CA", DialCode: "+1", MinLength: 10, MaxLength: 10, Pattern: `^[2-9]\d{2}[2-9]\d{2}\d{4}$`, Format: "(XXX) XXX-XXXX"},
	"IN": {Name: "India", Code: "IN", DialCode: "+91", MinLength: 10, MaxLength: 10, Pattern: `^[6-9]\d{9}$`, Format: "XXXXX XXXXX"},
	"GB": {Name: "United Kingdom", Code: "GB", DialCode: "+44", MinLength: 10, MaxLength: 11, Pattern: `^[1-9]\d{8,9}$`, Format: "XXXX XXX XXXX"},
	"AU": {Name: "Australia", Code: "AU", DialCode: "+61", MinLength: 9, MaxLength: 9, Pattern: `^[2-9]\d{8}$`, Format: "XXX XXX XXX"},
	"DE": {Name: "Germany", Code: "DE", DialCode: "+49", MinLength: 10, MaxLength: 12, Pattern: `^[1-9]\d{9,11}$`, Format: "XXX XXXXXXX"},
	"FR": {Name: "France", Code: "FR", DialCode: "+33", MinLength: 10, MaxLength: 10, Pattern: `^[1-9]\d{8}$`, Format: "XX XX XX XX XX"},
	"JP": {Name: "Japan", Code: "JP", DialCode: "+81", MinLength: 10, MaxLength: 11, Pattern: `^[1-9]\d{9,10}$`, Format: "XXX-XXXX-XXXX"},
	"CN": {Name: "China", Code: "CN", DialCode: "+86", MinLength: 11, MaxLength: 11, Pattern: `^1[3-9]\d{9}$`, Format: "XXX XXXX XXXX"},
	"BR": {Name: "Brazil", Code: "BR", DialCode: "+55", MinLength: 10, MaxLength: 11, Pattern: `^[1-9]\d{9,10}$`, Format: "(XX) XXXXX-XXXX"},
	"MX": {Name: "Mexico", Code: "MX", DialCode: "+52", MinLength: 10, MaxLength: 10, Pattern: `^[1-9]\d{9}$`, Format: "XXX XXX XXXX"},
	"KR": {Name: "South Korea", Code: "KR", DialCode: "+82", MinLength: 9, MaxLength: 10, Pattern: `^[1-9]\d{8,9}$`, Format: "XXX-XXXX-XXXX"},
	"IT": {Name: "Italy", Code: "IT", DialCode: "+39", MinLength: 9, MaxLength: 10, Pattern: `^[0-9]\d{8,9}$`, Format: "XXX XXX XXXX"},
	"ES": {Name: "Spain", Code: "ES", DialCode: "+34", MinLength: 9, MaxLength: 9, Pattern: `^[6-9]\d{8}$`, Format: "XXX XX XX XX"},
	"NL": {Name: "Netherlands", Code: "NL", DialCode: "+31", MinLength: 9, MaxLength: 9, Pattern: `^[1-9]\d{8}$`, Format: "XXX XXX XXX"},
	"SE": {Name: "Sweden", Code: "SE", DialCode: "+46", MinLength: 9, MaxLength: 9, Pattern: `^[1-9]\d{8}$`, Format: "XXX XXX XXX"},
	"NO": {Name: "Norway", Code: "NO", DialCode: "+47", MinLength: 8, MaxLength: 8, Pattern: `^[2-9]\d{7}$`, Format: "XXXX XXXX"},
	"DK": {Name: "Denmark", Code: "DK", DialCode: "+45", MinLength: 8, MaxLength: 8, Pattern: `^[2-9]\d{7}$`, Format: "XX XX XX XX"},
	"FI": {Name: "Finland", Code: "FI", DialCode: "+358", MinLength: 9, MaxLength: 10, Pattern: `^[1-9]\d{8,9}$`, Format: "XXX XXX XXXX"},
	"CH": {Name: "Switzerland", Code: "CH", DialCode: "+41", MinLength: 9, MaxLength: 9, Pattern: `^[1-9]\d{8}$`, Format: "XXX XXX XXX"},
	"AT": {Name: "Austria", Code: "AT", DialCode: "+43", MinLength: 10, MaxLength: 11, Pattern: `^[1-9]\d{9,10}$`, Format: "XXXX XXXXXXX"},
	"BE": {Name: "Belgium", Code: "BE", DialCode: "+32", MinLength: 9, MaxLength: 9, Pattern: `^[1-9]\d{8}$`, Format: "XXX XX XX XX"},
	"IE": {Name: "Ireland", Code: "IE", DialCode: "+353", MinLength: 9, MaxLength: 9, Pattern: `^[1-9]\d{8}$`, Format: "XXX XXX XXXX"},
	"NZ": {Name: "New Zealand", Code: "NZ", DialCode: "+64", MinLength: 9, MaxLength: 10, Pattern: `^[2-9]\d{8,9}$`, Format: "XXX XXX XXXX"},
	"SG": {Name: "Singapore", Code: "SG", DialCode: "+65", MinLength: 8, MaxLength: 8, Pattern: `^[6-9]\d{7}$`, Format: "XXXX XXXX"},
	"MY": {Name: "Malaysia", Code: "MY", DialCode: "+60", MinLength: 9, MaxLength: 10, Pattern: `^[1-9]\d{8,9}$`, Format: "XXX-XXX XXXX"},
	"TH": {Name: "Thailand", Code: "TH", DialCode: "+66", MinLength: 9, MaxLength: 9, Pattern: `^[6-9]\d{8}$`, Format: "XX XXX XXXX"},
	"PH": {Name: "Philippines", Code: "PH", DialCode: "+63", MinLength: 10, MaxLength: 10, Pattern: `^9\d{9}$`, Format: "XXXX XXX XXXX"},
	"VN": {Name: "Vietnam", Code: "VN", DialCode: "+84", MinLength: 9, MaxLength: 10, Pattern: `^[1-9]\d{8,9}$`, Format: "XXX XXX XXXX"},
	"ID": {Name: "Indonesia", Code: "ID", DialCode: "+62", MinLength: 10, MaxLength: 12, Pattern: `^8\d{9,11}$`, Format: "XXXX-XXXX-XXXX"},
	"TR": {Name: "Turkey", Code: "TR", DialCode: "+90", MinLength: 10, MaxLength: 10, Pattern: `^5\d{9}$`, Format: "XXX XXX XX XX"},
	"PL": {Name: "Poland", Code: "PL", DialCode: "+48", MinLength: 9, MaxLength: 9, Pattern: `^[4-9]\d{8}$`, Format: "XXX XXX XXX"},
	"CZ": {Name: "Czech Republic", Code: "CZ", DialCode: "+420", MinLength: 9, MaxLength: 9, Pattern: `^[2-9]\d{8}$`, Format: "XXX XXX XXX"},
	"HU": {Name: "Hungary", Code: "HU", DialCode: "+36", MinLength: 9, MaxLength: 9, Pattern: `^[2-9]\d{8}$`, Format: "XXX XXX XXX"},
	"RO": {Name: "Romania", Code: "RO", DialCode: "+40", MinLength: 10, MaxLength: 10, Pattern: `^7\d{9}$`, Format: "XXXX XXX XXX"},
	"RU": {Name: "Russia", Code: "RU", DialCode: "+7", MinLength: 10, MaxLength: 10, Pattern: `^9\d{9}$`, Format: "XXX XXX-XX-XX"},
	"ZA": {Name: "South Africa", Code: "ZA", DialCode: "+27", MinLength: 9, MaxLength: 9, Pattern: `^[6-8]\d{8}$`, Format: "XXX XXX XXXX"},
	"NG": {Name: "Nigeria", Code: "NG", DialCode: "+234", MinLength: 10, MaxLength: 10, Pattern: `^[7-9]\d{9}$`, Format: "XXX XXX XXXX"},
	"KE": {Name: "Kenya", Code: "KE", DialCode: "+254", MinLength: 9, MaxLength: 9, Pattern: `^7\d{8}$`, Format: "XXX XXX XXX"},
	"EG": {Name: "Egypt", Code: "EG", DialCode: "+20", MinLength: 10, MaxLength: 10, Pattern: `^1\d{9}$`, Format: "XXX XXX XXXX"},
	"AR": {Name: "Argentina", Code: "AR", DialCode: "+54", MinLength: 10, MaxLength: 10, Pattern: `^9\d{9}$`, Format: "XXXX-XXX-XXXX"},
	"CL": {Name: "Chile", Code: "CL", DialCode: "+56", MinLength: 9, MaxLength: 9, Pattern: `^9\d{8}$`, Format: "XXXX XXXX"},
	"CO": {Name: "Colombia", Code: "CO", DialCode: "+57", MinLength: 10, MaxLength: 10, Pattern: `^3\d{9}$`, Format: "XXX XXX XXXX"},
	"PE": {Name: "Peru", Code: "PE", DialCode: "+51", MinLength: 9, MaxLength: 9, Pattern: `^9\d{8}$`, Format: "XXX XXX XXX"},
}

// patterns holds the compiled form of every rule's Pattern.
var patterns = func() map[string]*regexp.Regexp {
	compiled := make(map[string]*regexp.Regexp, len(rules))
	for code, rule := range rules {
		compiled[code] = regexp.MustCompile(rule.Pattern)
	}
	return compiled
}()
