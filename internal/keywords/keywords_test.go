package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
search:
  - nikel papua
  - "  tambang waigeo "
  - ""
positive: [investasi, CSR, EV]
negative: [rusak, tolak, "#SaveRajaAmpat"]
neutral: [AMDAL, smelter]
`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"nikel papua", "tambang waigeo"}, s.Search)
	assert.Equal(t, s.Search, s.TimelineQueries, "timeline falls back to search keywords")

	rel := s.Relevant()
	for _, kw := range []string{"investasi", "csr", "ev", "rusak", "#saverajaampat", "amdal", "smelter"} {
		assert.Contains(t, rel, kw)
	}
	assert.Len(t, rel, 8)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("search: []\n"))
	assert.ErrorIs(t, err, ErrNoSearchKeywords)

	_, err = Parse([]byte("search: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Search, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
