package introspect

import (
	"fmt"
	"strings"

	"github.com/keystone-orm/keystone/internal/meta"
)

// TagName is the struct tag consulted for member options
const TagName = "persist"

// fieldOptions are the parsed options of a single `persist:"..."` tag
type fieldOptions struct {
	skip          bool
	primaryKey    bool
	transactional bool
	embedded      bool
	column        string
	target        string

	dfg    *bool
	relation *meta.RelationType
}

// parseTag parses a persist tag value. Options are comma-separated; value
// options use key=value form:
//
//	persist:"pk"
//	persist:"column=full_name,nodfg"
//	persist:"relation=one_to_one,target=app.Profile"
//	persist:"-"
func parseTag(tag string) (fieldOptions, error) {
	var opts fieldOptions
	if tag == "" {
		return opts, nil
	}
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value := part, ""
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			key, value = part[:idx], part[idx+1:]
		}

		switch key {
		case "pk", "primary":
			opts.primaryKey = true
		case "dfg":
			v := true
			opts.dfg = &v
		case "nodfg":
			v := false
			opts.dfg = &v
		case "transactional":
			opts.transactional = true
		case "embedded":
			opts.embedded = true
		case "column":
			if value == "" {
				return opts, fmt.Errorf("column option requires a value")
			}
			opts.column = value
		case "target":
			if value == "" {
				return opts, fmt.Errorf("target option requires a value")
			}
			opts.target = value
		case "relation":
			rel, err := meta.ParseRelationType(value)
			if err != nil {
				return opts, err
			}
			opts.relation = &rel
		default:
			return opts, fmt.Errorf("unknown persist option: %s", key)
		}
	}

	return opts, nil
}
