package dedup

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

func rec(url, fp string) harvest.HarvestedRecord {
	return harvest.HarvestedRecord{URL: url, Fingerprint: fp, Title: url + "/" + fp}
}

func TestRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []harvest.HarvestedRecord
		want []harvest.HarvestedRecord
	}{
		{name: "empty", in: nil, want: []harvest.HarvestedRecord{}},
		{
			name: "distinct kept in order",
			in:   []harvest.HarvestedRecord{rec("u1", "a"), rec("u2", "b"), rec("u3", "c")},
			want: []harvest.HarvestedRecord{rec("u1", "a"), rec("u2", "b"), rec("u3", "c")},
		},
		{
			name: "same locator different fingerprint keeps first",
			in:   []harvest.HarvestedRecord{rec("u1", "a"), rec("u1", "b")},
			want: []harvest.HarvestedRecord{rec("u1", "a")},
		},
		{
			name: "same fingerprint different locator keeps first",
			in:   []harvest.HarvestedRecord{rec("u1", "a"), rec("u2", "a")},
			want: []harvest.HarvestedRecord{rec("u1", "a")},
		},
		{
			name: "dropped record does not register its other key",
			// u2/a is dropped on fingerprint; u2 stays unseen so u2/c survives.
			in:   []harvest.HarvestedRecord{rec("u1", "a"), rec("u2", "a"), rec("u2", "c")},
			want: []harvest.HarvestedRecord{rec("u1", "a"), rec("u2", "c")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Records(tc.in))
		})
	}
}

func randomRecords(r *rand.Rand, n int) []harvest.HarvestedRecord {
	out := make([]harvest.HarvestedRecord, n)
	for i := range out {
		out[i] = rec(fmt.Sprintf("u%d", r.IntN(8)), fmt.Sprintf("f%d", r.IntN(8)))
	}
	return out
}

func sameRecord(a, b harvest.HarvestedRecord) bool {
	return a.URL == b.URL && a.Fingerprint == b.Fingerprint && a.Title == b.Title
}

func TestRecordsProperties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		in := randomRecords(r, r.IntN(30))
		once := Records(in)
		twice := Records(once)

		assert.Equal(t, once, twice, "idempotent")
		assert.LessOrEqual(t, len(once), len(in))

		// Output is a subsequence of the input.
		j := 0
		for _, item := range in {
			if j < len(once) && sameRecord(item, once[j]) {
				j++
			}
		}
		assert.Equal(t, len(once), j, "first-seen order preserved")

		urls := map[string]bool{}
		fps := map[string]bool{}
		for _, item := range once {
			assert.False(t, urls[item.URL])
			assert.False(t, fps[item.Fingerprint])
			urls[item.URL] = true
			fps[item.Fingerprint] = true
		}
	}
}

func TestReferences(t *testing.T) {
	t.Parallel()

	in := []harvest.ItemReference{
		{URL: "https://a.example/1", Keyword: "nikel papua"},
		{URL: "https://a.example/2", Keyword: "nikel papua"},
		{URL: "https://a.example/1", Keyword: "izin tambang"},
	}
	got := References(in)
	assert.Equal(t, in[:2], got)
	assert.Equal(t, got, References(got))
}
