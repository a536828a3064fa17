package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/JakeFAU/topic-harvester/internal/api"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

type exampleSource []harvest.LabeledRow

func (s exampleSource) Rows(context.Context) ([]harvest.LabeledRow, error) {
	return append([]harvest.LabeledRow(nil), s...), nil
}

// ExampleRecordsHandler_List shows the filter query parameters.
func ExampleRecordsHandler_List() {
	h := api.NewRecordsHandler(exampleSource{
		{Source: "Berita", PublishedAt: "2025-06-01 08:00:00", Text: "nikel naik", Sentiment: harvest.Positive},
		{Source: "Twitter", PublishedAt: "2025-06-02 09:00:00", Text: "nikel turun", Sentiment: harvest.Negative},
	}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/records?sentiment=Positif", nil))
	fmt.Println(rec.Code)
	fmt.Print(rec.Body.String())
	// Output:
	// 200
	// {"records":[{"sumber":"Berita","tanggal_publikasi":"2025-06-01 08:00:00","teks":"nikel naik","teks_bersih":"","sentimen":"Positif"}],"total":1}
}
