package youtube

import (
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO 8601 duration such as "PT4M13S" into whole
// seconds. Empty or unparseable input yields 0.
func ParseDuration(encoded string) int {
	match := durationPattern.FindStringSubmatch(encoded)
	if match == nil {
		return 0
	}

	part := func(i int) int {
		if match[i] == "" {
			return 0
		}
		n, err := strconv.Atoi(match[i])
		if err != nil {
			return 0
		}
		return n
	}

	return part(1)*86400 + part(2)*3600 + part(3)*60 + part(4)
}
