package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Render substitutes every {field} placeholder in tmpl with the matching value,
// wrapped in WhatsApp bold markers. Unknown placeholders pass through unchanged
// and repeated placeholders are all replaced. Pure function, no I/O.
func Render(tmpl string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for name, value := range fields {
		pairs = append(pairs, "{"+name+"}", "*"+value+"*")
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// RenderPlain substitutes placeholders without emphasis wrapping.
func RenderPlain(tmpl string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for name, value := range fields {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Placeholders lists the distinct placeholder names referenced by tmpl, sorted.
func Placeholders(tmpl string) []string {
	seen := make(map[string]struct{})
	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		seen[match[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects templates referencing placeholders outside the known field
// set. Run at template-save time so a typo surfaces to the operator instead of
// leaking literal braces into outbound messages.
func Validate(tmpl string, known map[string]struct{}) error {
	var unknown []string
	for _, name := range Placeholders(tmpl) {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown placeholders: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// KnownFields is the placeholder set available to registrant-facing templates.
// The admin template additionally gets the aggregate fields below.
func KnownFields() map[string]struct{} {
	return fieldSet(
		"registration_no", "name", "village", "state", "mobile", "position",
		"age", "gender", "male_members", "female_members", "child_members",
		"total_members", "connected",
	)
}

// KnownAdminFields extends KnownFields with aggregates injected at render time.
func KnownAdminFields() map[string]struct{} {
	set := KnownFields()
	for name := range fieldSet("total_registrations", "today_registrations") {
		set[name] = struct{}{}
	}
	return set
}

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
