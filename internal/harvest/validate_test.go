package harvest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longBody(n int) string {
	words := []string{"tambang", "nikel", "di", "pulau", "waigeo", "menuai", "protes", "warga"}
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i%len(words)])
		b.WriteString(strings.Repeat("x", i%5))
	}
	return b.String()
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := longBody(400)
	repeated := strings.Repeat(ok[:120], 3)

	tests := []struct {
		name string
		rec  HarvestedRecord
		want error
	}{
		{name: "valid", rec: HarvestedRecord{Title: "Judul", Body: ok}, want: nil},
		{name: "exactly minimum length", rec: HarvestedRecord{Title: "Judul", Body: strings.Repeat("a", MinTextLength)}, want: nil},
		{name: "short body", rec: HarvestedRecord{Title: "Judul", Body: strings.Repeat("a", MinTextLength-1)}, want: ErrBodyTooShort},
		{name: "empty title", rec: HarvestedRecord{Title: "", Body: ok}, want: ErrEmptyTitle},
		{name: "blank title", rec: HarvestedRecord{Title: "  \t", Body: ok}, want: ErrEmptyTitle},
		{name: "repeated opening", rec: HarvestedRecord{Title: "Judul", Body: repeated}, want: ErrRepetitiveBody},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.rec)
			if tc.want == nil {
				assert.NoError(t, err)
				assert.True(t, Valid(tc.rec))
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, Valid(tc.rec))
		})
	}
}

func TestValidateCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	// 149 two-byte runes: enough bytes, too few characters.
	body := strings.Repeat("é", MinTextLength-1)
	require.Greater(t, len(body), MinTextLength)
	assert.ErrorIs(t, Validate(HarvestedRecord{Title: "t", Body: body}), ErrBodyTooShort)
}

func TestValidateAllowsTwoRepeats(t *testing.T) {
	t.Parallel()

	base := longBody(200)
	body := base + " " + base[:RepetitionPrefix]
	assert.NoError(t, Validate(HarvestedRecord{Title: "t", Body: body}))
}

type stubHasher struct{ seen []string }

func (s *stubHasher) Hash(data []byte) (string, error) {
	s.seen = append(s.seen, string(data))
	return "digest", nil
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	h := &stubHasher{}
	_, err := Fingerprint(h, "  nikel \n\t papua  ")
	require.NoError(t, err)
	_, err = Fingerprint(h, "nikel papua")
	require.NoError(t, err)
	assert.Equal(t, []string{"nikel papua", "nikel papua"}, h.seen)
}
