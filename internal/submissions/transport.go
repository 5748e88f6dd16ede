package submissions

import (
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gates every outgoing attempt, retries included, behind an in-flight cap and a minimum
// spacing between request starts.
type gatedTransport struct {
	next    http.RoundTripper
	sem     *semaphore.Weighted
	spacing *rate.Limiter
}

func (t *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if err := t.spacing.Wait(ctx); err != nil {
		t.sem.Release(1)
		return nil, err
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.sem.Release(1)
		return nil, err
	}

	// the slot is held until the body is consumed
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() { t.sem.Release(1) }}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
