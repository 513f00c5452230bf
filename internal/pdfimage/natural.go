package pdfimage

import "sort"

// sortNatural orders names so that embedded numbers compare by value,
// putting Im2 before Im10.
func sortNatural(names []string) {
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
}

func naturalLess(a, b string) bool {
	origA, origB := a, b
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		switch {
		case da && db:
			na, ra := leadingNumber(a)
			nb, rb := leadingNumber(b)
			if na != nb {
				if len(na) != len(nb) {
					return len(na) < len(nb)
				}
				return na < nb
			}
			a, b = ra, rb
		case a[0] != b[0]:
			return a[0] < b[0]
		default:
			a, b = a[1:], b[1:]
		}
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return origA < origB
}

// leadingNumber splits off the leading digits of s without leading zeros.
func leadingNumber(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	n := s[:i]
	for len(n) > 1 && n[0] == '0' {
		n = n[1:]
	}
	return n, s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
