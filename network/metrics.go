// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SplitMetrics counts data discarded by split networks. A nil *SplitMetrics is valid and
// does nothing
type SplitMetrics struct {
	discarded *prometheus.CounterVec
}

// NewSplitMetrics creates and registers the split network metrics. It returns nil metrics
// when no registerer is provided
func NewSplitMetrics(registerer prometheus.Registerer) (*SplitMetrics, error) {
	if registerer == nil {
		return nil, nil
	}
	m := &SplitMetrics{
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aleph",
			Subsystem: "network",
			Name:      "split_discarded_total",
			Help:      "Data discarded because the destination split network was closed.",
		}, []string{"network"}),
	}
	if err := registerer.Register(m.discarded); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SplitMetrics) reportDiscarded(name string) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(name).Inc()
}
