package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	fields := map[string]string{
		"name":            "Asha",
		"registration_no": "REG-1042",
	}

	t.Run("replaces all occurrences with bold wrapping", func(t *testing.T) {
		out := Render("Hello {name}, your number is {registration_no}. Bye {name}.", fields)
		assert.Equal(t, "Hello *Asha*, your number is *REG-1042*. Bye *Asha*.", out)
	})

	t.Run("unknown placeholders pass through unchanged", func(t *testing.T) {
		out := Render("Hi {name}, see {unknown_field}", fields)
		assert.Equal(t, "Hi *Asha*, see {unknown_field}", out)
	})

	t.Run("empty template renders empty", func(t *testing.T) {
		assert.Equal(t, "", Render("", fields))
	})

	t.Run("no placeholders is identity", func(t *testing.T) {
		assert.Equal(t, "plain text", Render("plain text", fields))
	})

	t.Run("round trip leaves no literal braces", func(t *testing.T) {
		tmpl := "No: {registration_no}, Name: {name}, again {name}"
		values := make(map[string]string)
		for _, name := range Placeholders(tmpl) {
			values[name] = "x"
		}
		out := Render(tmpl, values)
		assert.False(t, strings.ContainsAny(out, "{}"), "rendered output %q still contains braces", out)
	})
}

func TestRenderPlain(t *testing.T) {
	out := RenderPlain("Hi {name}", map[string]string{"name": "Asha"})
	assert.Equal(t, "Hi Asha", out)
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("a {name} b {age} c {name}")
	assert.Equal(t, []string{"age", "name"}, names)
}

func TestValidate(t *testing.T) {
	t.Run("accepts known placeholders", func(t *testing.T) {
		err := Validate("Hi {name}, reg {registration_no}, members {total_members}", KnownFields())
		assert.NoError(t, err)
	})

	t.Run("rejects unknown placeholders", func(t *testing.T) {
		err := Validate("Hi {naem}, reg {registration_no}", KnownFields())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "naem")
	})

	t.Run("admin aggregates only valid for admin templates", func(t *testing.T) {
		tmpl := "Total: {total_registrations}, Today: {today_registrations}"
		assert.Error(t, Validate(tmpl, KnownFields()))
		assert.NoError(t, Validate(tmpl, KnownAdminFields()))
	})
}
