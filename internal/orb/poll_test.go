package orb

import (
	"context"
	"errors"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recordingObserver captures Notify invocations.
type recordingObserver struct {
	mu    sync.Mutex
	calls []observerCall
}

type observerCall struct {
	dataset string
	size    int
}

func (o *recordingObserver) Notify(_ context.Context, dataset string, batch []Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observerCall{dataset: dataset, size: len(batch)})
}

func (o *recordingObserver) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func collect(ch <-chan []Record) [][]Record {
	var out [][]Record
	for batch := range ch {
		out = append(out, batch)
	}
	return out
}

var _ = Describe("Poll", func() {
	It("rejects an unknown dataset before any network call", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, "[]"), nil
		}}
		client := newTestClient(doer)

		_, err := client.Poll(context.Background(), PollOptions{Dataset: "not_a_real_dataset", Interval: 1})
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(doer.callCount()).To(BeZero())
	})

	It("rejects a non-positive interval", func() {
		client := newTestClient(&fakeDoer{})
		_, err := client.Poll(context.Background(), PollOptions{Dataset: "scores_1m", Interval: 0})
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})

	It("rejects a reserved id param before the loop starts", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, "[]"), nil
		}}
		client := newTestClient(doer)
		_, err := client.Poll(context.Background(), PollOptions{
			Dataset:  "scores_1m",
			Interval: 1,
			Params:   map[string]string{"id": "x"},
		})
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(doer.callCount()).To(BeZero())
	})

	It("delivers empty batches so the consumer can tell checked from unchecked", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, "[]"), nil
		}}
		client := newTestClient(doer)
		observer := &recordingObserver{}

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 2,
			Observer:      observer,
		})
		Expect(err).NotTo(HaveOccurred())

		batches := collect(ch)
		Expect(batches).To(HaveLen(2))
		Expect(batches[0]).To(BeEmpty())
		Expect(batches[1]).To(BeEmpty())
		Expect(observer.callCount()).To(BeZero())
		Expect(doer.callCount()).To(Equal(2))
	})

	It("swallows a failed cycle and completes without delivering", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(500, "boom"), nil
		}}
		client := newTestClient(doer)

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(collect(ch)).To(BeEmpty())
		Expect(doer.callCount()).To(Equal(1))
	})

	It("keeps polling after a failed cycle", func() {
		doer := &fakeDoer{handler: func(call int, _ *http.Request) (*http.Response, error) {
			if call == 0 {
				return nil, errors.New("connection refused")
			}
			return jsonResponse(200, sampleBody(sampleScore)), nil
		}}
		client := newTestClient(doer)

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		batches := collect(ch)
		Expect(batches).To(HaveLen(1))
		Expect(batches[0]).To(HaveLen(1))
		Expect(doer.callCount()).To(Equal(2))
	})

	It("notifies the observer before delivering each non-empty batch", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, sampleBody(sampleScore)), nil
		}}
		client := newTestClient(doer)

		var mu sync.Mutex
		var events []string
		var seen []observerCall
		observer := ObserverFunc(func(_ context.Context, dataset string, batch []Record) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "notify")
			seen = append(seen, observerCall{dataset: dataset, size: len(batch)})
		})

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 2,
			Observer:      observer,
		})
		Expect(err).NotTo(HaveOccurred())

		for batch := range ch {
			mu.Lock()
			events = append(events, "deliver")
			mu.Unlock()
			Expect(batch).To(HaveLen(1))
		}
		Expect(events).To(Equal([]string{"notify", "deliver", "notify", "deliver"}))
		Expect(seen).To(Equal([]observerCall{
			{dataset: "scores_1m", size: 1},
			{dataset: "scores_1m", size: 1},
		}))
	})

	It("reuses the default caller id on every cycle", func() {
		doer := &fakeDoer{handler: func(call int, _ *http.Request) (*http.Response, error) {
			if call == 0 {
				return jsonResponse(200, sampleBody(sampleScore, sampleScoreLater)), nil
			}
			return jsonResponse(200, sampleBody(sampleScore)), nil
		}}
		client := newTestClient(doer)

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		batches := collect(ch)
		Expect(batches).To(HaveLen(2))
		Expect(batches[0]).To(HaveLen(2))
		Expect(batches[1]).To(HaveLen(1))
		Expect(doer.request(0).URL.Query().Get("id")).To(Equal("test-caller"))
		Expect(doer.request(1).URL.Query().Get("id")).To(Equal("test-caller"))
	})

	It("stops on context cancellation without explicit teardown", func() {
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, "[]"), nil
		}}
		client := newTestClient(doer)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch, err := client.Poll(ctx, PollOptions{Dataset: "scores_1m", Interval: 1})
		Expect(err).NotTo(HaveOccurred())

		received := 0
		for range ch {
			received++
			if received == 3 {
				cancel()
			}
		}
		Expect(received).To(BeNumerically(">=", 3))
	})

	It("rejects a malformed batch without delivering a partial one", func() {
		missingScore := `{"orb_id":"orb-1","orb_version":"2.1.0","timestamp":1700000000000}`
		doer := &fakeDoer{handler: func(int, *http.Request) (*http.Response, error) {
			return jsonResponse(200, sampleBody(sampleScore, missingScore)), nil
		}}
		client := newTestClient(doer)

		ch, err := client.Poll(context.Background(), PollOptions{
			Dataset:       "scores_1m",
			Interval:      1,
			MaxIterations: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(collect(ch)).To(BeEmpty())
	})
})
