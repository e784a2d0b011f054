package pipeline

import "testing"

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"sql_query":      IntentSQLQuery,
		" SQL_QUERY ":    IntentSQLQuery,
		"greeting":       IntentGreeting,
		`"greeting"`:     IntentGreeting,
		"out_of_scope":   IntentOutOfScope,
		"chitchat":       IntentOutOfScope,
		"select a query": IntentOutOfScope,
		"":               IntentOutOfScope,
	}
	for label, want := range cases {
		if got := ParseIntent(label); got != want {
			t.Fatalf("ParseIntent(%q) = %q, want %q", label, got, want)
		}
	}
}
