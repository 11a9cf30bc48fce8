package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusProbe runs an instant query against the Prometheus HTTP API.
type PrometheusProbe struct {
	Query string

	api v1.API

	// OnValue, if set, is called with every value observed.
	OnValue func(float64)
}

func NewPrometheusProbe(baseURL, query string) (*PrometheusProbe, error) {
	client, err := api.NewClient(api.Config{Address: baseURL})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &PrometheusProbe{Query: query, api: v1.NewAPI(client)}, nil
}

// Value returns the value of the first series in the query result. found
// is false when the result is empty.
func (p *PrometheusProbe) Value(ctx context.Context) (value float64, found bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, warnings, err := p.api.Query(ctx, p.Query, time.Now())
	if err != nil {
		return 0, false, fmt.Errorf("query %q: %w", p.Query, err)
	}
	if len(warnings) > 0 {
		slog.Debug("prometheus query warnings", "query", p.Query, "warnings", warnings)
	}

	if result == nil {
		return 0, false, nil
	}

	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, false, nil
		}
		return float64(v[0].Value), true, nil
	case *model.Scalar:
		return float64(v.Value), true, nil
	case model.Matrix:
		if len(v) == 0 || len(v[0].Values) == 0 {
			return 0, false, nil
		}
		last := v[0].Values[len(v[0].Values)-1]
		return float64(last.Value), true, nil
	default:
		return 0, false, fmt.Errorf("query %q: unsupported result type %s", p.Query, result.Type())
	}
}

// Check reports whether the query yields a positive value.
func (p *PrometheusProbe) Check(ctx context.Context) (bool, error) {
	v, found, err := p.Value(ctx)
	if err != nil || !found {
		return false, err
	}
	if p.OnValue != nil {
		p.OnValue(v)
	}
	return v > 0, nil
}
