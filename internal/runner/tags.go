package runner

import (
	"fmt"
	"strings"
)

// ParseTags parses a comma-separated tag list ("queue=cpu_queue,os=linux")
// into a tag map.
func ParseTags(s string) (map[string]string, error) {
	tags := make(map[string]string)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("tag %q is not in key=value form", item)
		}
		tags[k] = v
	}
	return tags, nil
}
