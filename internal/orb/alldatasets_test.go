package orb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeSensor serves the dataset endpoints, optionally failing some, and
// records which paths were hit.
type fakeSensor struct {
	mu      sync.Mutex
	hits    []string
	failing map[string]bool
}

func (s *fakeSensor) handler() http.HandlerFunc {
	bodies := map[string]string{
		"/api/v2/datasets/scores_1m.json":                  sampleBody(sampleScore),
		"/api/v2/datasets/responsiveness_1s.json":          sampleBody(sampleResponsiveness),
		"/api/v2/datasets/responsiveness_15s.json":         sampleBody(sampleResponsiveness),
		"/api/v2/datasets/responsiveness_1m.json":          sampleBody(sampleResponsiveness),
		"/api/v2/datasets/web_responsiveness_results.json": sampleBody(sampleWebResponsiveness),
		"/api/v2/datasets/speed_results.json":              sampleBody(sampleSpeed),
		"/api/v2/datasets/wifi_link_1s.json":               sampleBody(sampleWifiLink),
		"/api/v2/datasets/wifi_link_15s.json":              sampleBody(sampleWifiLink),
		"/api/v2/datasets/wifi_link_1m.json":               sampleBody(sampleWifiLink),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits = append(s.hits, r.URL.Path)
		failing := s.failing[r.URL.Path]
		s.mu.Unlock()

		if failing {
			http.Error(w, "dataset unavailable", http.StatusInternalServerError)
			return
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (s *fakeSensor) hitPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

var _ = Describe("GetAllDatasets", func() {
	var sensor *fakeSensor
	var ts *httptest.Server
	var client *Client

	BeforeEach(func() {
		sensor = &fakeSensor{failing: map[string]bool{}}
		ts = httptest.NewServer(sensor.handler())
		DeferCleanup(ts.Close)
		client = clientForServer(ts, "aggregate-caller")
	})

	It("fetches the five base datasets and leaves optional slots absent", func() {
		result := client.GetAllDatasets(context.Background(), AllDatasetsOptions{})

		Expect(result.Scores1m.Err).NotTo(HaveOccurred())
		Expect(result.Scores1m.Records).To(HaveLen(1))
		Expect(result.Responsiveness1m.Err).NotTo(HaveOccurred())
		Expect(result.WebResponsiveness.Err).NotTo(HaveOccurred())
		Expect(result.SpeedResults.Err).NotTo(HaveOccurred())
		Expect(result.WifiLink1m.Err).NotTo(HaveOccurred())

		Expect(result.Responsiveness15s).To(BeNil())
		Expect(result.Responsiveness1s).To(BeNil())
		Expect(result.WifiLink15s).To(BeNil())
		Expect(result.WifiLink1s).To(BeNil())

		Expect(sensor.hitPaths()).To(HaveLen(5))
	})

	It("adds the extra granularities when requested", func() {
		result := client.GetAllDatasets(context.Background(), AllDatasetsOptions{
			IncludeAllResponsiveness: true,
			IncludeAllWifiLink:       true,
		})

		Expect(result.Responsiveness15s).NotTo(BeNil())
		Expect(result.Responsiveness15s.Records).To(HaveLen(1))
		Expect(result.Responsiveness1s).NotTo(BeNil())
		Expect(result.WifiLink15s).NotTo(BeNil())
		Expect(result.WifiLink1s).NotTo(BeNil())
		Expect(sensor.hitPaths()).To(HaveLen(9))
	})

	It("isolates a failing dataset in its own slot", func() {
		sensor.failing["/api/v2/datasets/responsiveness_1m.json"] = true

		result := client.GetAllDatasets(context.Background(), AllDatasetsOptions{})

		Expect(result.Responsiveness1m.Err).To(HaveOccurred())
		Expect(result.Responsiveness1m.Records).To(BeNil())
		Expect(result.Scores1m.Err).NotTo(HaveOccurred())
		Expect(result.Scores1m.Records).To(HaveLen(1))
		Expect(result.WebResponsiveness.Err).NotTo(HaveOccurred())
		Expect(result.SpeedResults.Err).NotTo(HaveOccurred())
		Expect(result.WifiLink1m.Err).NotTo(HaveOccurred())
	})

	It("marshals error slots as an error object and omits absent slots", func() {
		sensor.failing["/api/v2/datasets/speed_results.json"] = true

		result := client.GetAllDatasets(context.Background(), AllDatasetsOptions{})
		b, err := json.Marshal(result)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]json.RawMessage
		Expect(json.Unmarshal(b, &decoded)).To(Succeed())

		Expect(decoded).To(HaveKey("scores_1m"))
		Expect(decoded).To(HaveKey("wifi_link_1m"))
		Expect(decoded).NotTo(HaveKey("responsiveness_15s"))
		Expect(decoded).NotTo(HaveKey("wifi_link_1s"))

		var errSlot map[string]string
		Expect(json.Unmarshal(decoded["speed_results"], &errSlot)).To(Succeed())
		Expect(errSlot["error"]).To(ContainSubstring("500"))

		var scores []json.RawMessage
		Expect(json.Unmarshal(decoded["scores_1m"], &scores)).To(Succeed())
		Expect(scores).To(HaveLen(1))
	})

	It("shares one caller id across all fetches", func() {
		seen := map[string]bool{}
		var mu sync.Mutex
		inner := sensor.handler()
		ts.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen[r.URL.Query().Get("id")] = true
			mu.Unlock()
			inner(w, r)
		})

		client.GetAllDatasets(context.Background(), AllDatasetsOptions{})
		mu.Lock()
		defer mu.Unlock()
		Expect(seen).To(HaveLen(1))
		Expect(seen).To(HaveKey("aggregate-caller"))
	})
})
