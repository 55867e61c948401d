package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// sample returns the series of family name carrying label=value.
func sample(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric, nil
				}
			}
		}
		return nil, fmt.Errorf("%s has no series with %s=%s", name, label, value)
	}
	return nil, fmt.Errorf("%s not gathered", name)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := sample(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}
