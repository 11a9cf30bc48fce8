package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// CollectorProbe scrapes a Prometheus text exposition endpoint and looks for
// a single metric family.
type CollectorProbe struct {
	URL        string
	Metric     string
	Threshold  float64
	HTTPClient *http.Client

	// OnValue, if set, is called with every value observed.
	OnValue func(float64)
}

func NewCollectorProbe(url, metric string, threshold float64) *CollectorProbe {
	return &CollectorProbe{
		URL:        url,
		Metric:     metric,
		Threshold:  threshold,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Value returns the largest sample of the metric family. found is false when
// the endpoint does not expose the metric at all.
func (p *CollectorProbe) Value(ctx context.Context) (value float64, found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("scrape %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, false, fmt.Errorf("scrape %s: %s", p.URL, resp.Status)
	}

	return ParseExposition(resp.Body, p.Metric)
}

// Check reports whether the metric has reached the threshold.
func (p *CollectorProbe) Check(ctx context.Context) (bool, error) {
	v, found, err := p.Value(ctx)
	if err != nil || !found {
		return false, err
	}
	if p.OnValue != nil {
		p.OnValue(v)
	}
	return v >= p.Threshold, nil
}

// ParseExposition parses Prometheus text format from r and returns the
// largest sample value of the named family.
func ParseExposition(r io.Reader, metric string) (float64, bool, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return 0, false, fmt.Errorf("parse exposition: %w", err)
	}

	mf, ok := families[metric]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0, false, nil
	}

	best := sampleValue(mf.GetType(), mf.GetMetric()[0])
	for _, m := range mf.GetMetric()[1:] {
		if v := sampleValue(mf.GetType(), m); v > best {
			best = v
		}
	}
	return best, true, nil
}

func sampleValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_SUMMARY:
		return float64(m.GetSummary().GetSampleCount())
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return m.GetUntyped().GetValue()
	}
}
