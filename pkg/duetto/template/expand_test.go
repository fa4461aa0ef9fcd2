package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	vars := map[string]any{
		"ticker":            "ACME",
		"title":             "8-K: Acme Corp",
		"priority_level":    3,
		"payload.form_type": "8-K",
		"summary":           `said "hello"`,
		"empty":             "",
		"source":            "sec edgar",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "${ticker}", "ACME"},
		{"embedded", "[${ticker}] ${title}", "[ACME] 8-K: Acme Corp"},
		{"number", "level=${priority_level}", "level=3"},
		{"dotted", "form ${payload.form_type}", "form 8-K"},
		{"default used", "${company:-unknown}", "unknown"},
		{"default for empty", "${empty:-n/a}", "n/a"},
		{"default ignored", "${ticker:-X}", "ACME"},
		{"upper", "${title|upper}", "8-K: ACME CORP"},
		{"lower chain", "${ticker|lower|upper}", "ACME"},
		{"json", `{"s": ${summary|json}}`, `{"s": "said \"hello\""}`},
		{"json number", "${priority_level|json}", "3"},
		{"urlquery", "q=${source|urlquery}", "q=sec+edgar"},
		{"default then filter", "${company:-anon|upper}", "ANON"},
		{"missing kept", "${nope}", "${nope}"},
		{"no placeholders", "plain text", "plain text"},
		{"bare dollar", "$ticker", "$ticker"},
	}

	exp := NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exp.Expand(tt.input, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_MissingActions(t *testing.T) {
	vars := map[string]any{"a": "1"}

	got, err := NewExpander(WithMissingAction(MissingEmpty)).Expand("${a}-${b}", vars)
	require.NoError(t, err)
	assert.Equal(t, "1-", got)

	_, err = NewExpander(WithMissingAction(MissingError)).Expand("${b} ${c} ${a}", vars)
	var undef *UndefinedVariableError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, []string{"b", "c"}, undef.Names)
	assert.Equal(t, "undefined variables: b, c", undef.Error())

	got, err = NewExpander(WithMissingAction(MissingError)).Expand("${b:-x}", vars)
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestExpand_Filters(t *testing.T) {
	_, err := NewExpander().Expand("${a|shout}", map[string]any{"a": "x"})
	assert.ErrorContains(t, err, "unknown filter")

	exp := NewExpander(WithFilter("shout", func(v any) (string, error) {
		return strings.ToUpper(stringify(v)) + "!", nil
	}))
	got, err := exp.Expand("${a|shout}", map[string]any{"a": "hey"})
	require.NoError(t, err)
	assert.Equal(t, "HEY!", got)

	failing := NewExpander(WithFilter("fail", func(any) (string, error) {
		return "", errors.New("nope")
	}))
	_, err = failing.Expand("${a|fail}", map[string]any{"a": "x"})
	assert.ErrorContains(t, err, "nope")
}

func TestExpandMap(t *testing.T) {
	exp := NewExpander()
	got, err := exp.ExpandMap(map[string]any{
		"text":   "${title}",
		"count":  2,
		"nested": map[string]any{"tag": "${ticker|lower}"},
	}, map[string]any{"title": "T", "ticker": "ACME"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"text":   "T",
		"count":  2,
		"nested": map[string]any{"tag": "acme"},
	}, got)

	m, err := exp.ExpandMap(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "payload.b"}, Placeholders("${a} ${payload.b|upper} ${a:-x}"))
	assert.Empty(t, Placeholders("none"))
}

func TestPackageExpand(t *testing.T) {
	assert.Equal(t, "hi ${who}", Expand("hi ${who}", nil))
	assert.Equal(t, "", Expand("", nil))
	assert.Panics(t, func() {
		NewExpander(WithMissingAction(MissingError)).MustExpand("${x}", nil)
	})
}
