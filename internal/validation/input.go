package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePositiveInt parses s as an integer greater than zero.
func ParsePositiveInt(s, fieldName string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", fieldName, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %d: must be positive", fieldName, n)
	}
	return n, nil
}

// ParseIDList parses ticket ids given as separate arguments or
// comma-separated lists, dropping duplicates while keeping order.
func ParseIDList(args []string) ([]int, error) {
	seen := make(map[int]struct{})
	var ids []int
	for _, arg := range args {
		for part := range strings.SplitSeq(arg, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := ParsePositiveInt(part, "ticket id")
			if err != nil {
				return nil, err
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
