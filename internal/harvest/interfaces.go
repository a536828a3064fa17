package harvest

import (
	"context"
	"io"
	"time"
)

// Fetcher loads a locator and returns the rendered document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RawDocument, error)
}

// Extractor pulls title, authors, body and publish date out of a document.
type Extractor interface {
	Extract(doc RawDocument) (Content, error)
}

// Hasher computes digests for fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Limiter paces outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RecordStore persists harvested records outside the blob store.
type RecordStore interface {
	StoreRecords(ctx context.Context, runID string, records []HarvestedRecord) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
