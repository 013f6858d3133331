package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Entry
		wantErr bool
	}{
		{"equals separator", "site=/srv/site", Entry{"site", "/srv/site"}, false},
		{"colon separator", "site:/srv/hooks/deploy.sh", Entry{"site", "/srv/hooks/deploy.sh"}, false},
		{"target keeps later separators", "win=C:/repos/a=b", Entry{"win", "C:/repos/a=b"}, false},
		{"surrounding spaces trimmed", " site = /srv/site ", Entry{"site", "/srv/site"}, false},
		{"relative target", "site=./site", Entry{"site", "./site"}, false},
		{"no separator", "site", Entry{}, true},
		{"empty key", "=/srv/site", Entry{}, true},
		{"empty target", "site=", Entry{}, true},
		{"invalid key", "my-site=/srv/site", Entry{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntries_ReportsAllErrors(t *testing.T) {
	_, err := ParseEntries([]string{"ok=/srv/ok", "broken", "bad-key=/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.Contains(t, err.Error(), `"bad-key=/x"`)
	assert.NotContains(t, err.Error(), `"ok=/srv/ok"`)
}

func TestParseEntries_PreservesOrder(t *testing.T) {
	entries, err := ParseEntries([]string{"a=/one", "b:/two", "a=/three"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"a", "/one"}, {"b", "/two"}, {"a", "/three"}}, entries)
}

func TestEntryString(t *testing.T) {
	assert.Equal(t, "a=/srv/a", Entry{"a", "/srv/a"}.String())
}
