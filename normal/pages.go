package normal

import (
	"math"
	"strconv"
	"strings"
)

// CountPages parses a pages string and counts the number of pages, cf.
// https://github.com/billjh/dblp-iter-parser. Multiple parts may be separated
// by commas, each part is a single page or a range.
//
// Valid:
//
//	51         -> single number
//	23-43      -> range by two numbers
//
// Non-digits are allowed but ignored, only the last run of digits counts:
//
//	AG83-AG120, 90210H, 8e:1-8e:4, 11:12-21, P1.35, S2/109, 2-3&4
//
// Invalid, counted as zero:
//
//	I-XXI      -> roman numerals are not recognized
//	0-         -> incomplete range
//	91A-91A-3  -> more than one dash
//	f          -> no digits
//
// A descending range contributes zero as well. Returns the empty string, if
// the total is zero or does not fit into an int64.
func CountPages(pages string) string {
	var total int64
	for _, part := range strings.Split(pages, ",") {
		n := countPart(part)
		if total > math.MaxInt64-n {
			return ""
		}
		total += n
	}
	if total == 0 {
		return ""
	}
	return strconv.FormatInt(total, 10)
}

// countPart evaluates a single comma separated part.
func countPart(part string) int64 {
	subparts := strings.Split(part, "-")
	if len(subparts) > 2 {
		return 0
	}
	var nums = make([]int64, len(subparts))
	for i, sub := range subparts {
		v, ok := lastNumber(sub)
		if !ok {
			return 0
		}
		nums[i] = v
	}
	if len(nums) == 1 {
		return 1
	}
	// Both bounds are non-negative, the difference cannot overflow.
	d := nums[1] - nums[0]
	if d < 0 || d == math.MaxInt64 {
		return 0
	}
	return d + 1
}

// lastNumber finds the last maximal run of ASCII digits in s, e.g. 23 for
// "P17.23". Runs that do not fit into an int64 are not numbers.
func lastNumber(s string) (int64, bool) {
	end := strings.LastIndexFunc(s, isDigit)
	if end == -1 {
		return 0, false
	}
	start := end
	for start > 0 && isDigit(rune(s[start-1])) {
		start--
	}
	v, err := strconv.ParseInt(s[start:end+1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
