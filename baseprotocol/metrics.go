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

package baseprotocol

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	admissionResultAccepted = "accepted"
	admissionResultRemoved  = "removed"
)

func rejectionResult(err error) string {
	switch {
	case errors.Is(err, ErrBadHandshake):
		return "bad_handshake"
	case errors.Is(err, ErrWrongNetwork):
		return "wrong_network"
	case errors.Is(err, ErrAlreadyConnected):
		return "already_connected"
	case errors.Is(err, ErrFullInboundSlotsExhausted):
		return "full_inbound_exhausted"
	case errors.Is(err, ErrFullOutboundSlotsExhausted):
		return "full_outbound_exhausted"
	case errors.Is(err, ErrLightSlotsExhausted):
		return "light_exhausted"
	default:
		return "rejected"
	}
}

// Metrics reports slot usage. A nil *Metrics is valid and does nothing
type Metrics struct {
	slots      *prometheus.GaugeVec
	slotLimits *prometheus.GaugeVec
	admissions *prometheus.CounterVec
}

// NewMetrics creates and registers the base protocol metrics. It returns nil metrics when
// no registerer is provided
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		return nil, nil
	}
	m := &Metrics{
		slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aleph",
			Subsystem: "base_protocol",
			Name:      "slots",
			Help:      "Number of non-reserved peers occupying a slot, by category.",
		}, []string{"category"}),
		slotLimits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aleph",
			Subsystem: "base_protocol",
			Name:      "slot_limits",
			Help:      "Configured maximum number of peers, by category.",
		}, []string{"category"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aleph",
			Subsystem: "base_protocol",
			Name:      "admissions_total",
			Help:      "Peer admission outcomes.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{m.slots, m.slotLimits, m.admissions} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setLimits(limits SlotLimits) {
	if m == nil {
		return
	}
	m.slotLimits.WithLabelValues(SlotCategoryFullInbound.String()).
		Set(float64(limits.MaxFullInbound))
	m.slotLimits.WithLabelValues(SlotCategoryFullOutbound.String()).
		Set(float64(limits.MaxFullOutbound))
	m.slotLimits.WithLabelValues(SlotCategoryLight.String()).
		Set(float64(limits.MaxLight))
}

func (m *Metrics) setCounters(counters SlotCounters) {
	if m == nil {
		return
	}
	m.slots.WithLabelValues(SlotCategoryFullInbound.String()).
		Set(float64(counters.FullInbound))
	m.slots.WithLabelValues(SlotCategoryFullOutbound.String()).
		Set(float64(counters.FullOutbound))
	m.slots.WithLabelValues(SlotCategoryLight.String()).
		Set(float64(counters.Light))
}

func (m *Metrics) reportAdmission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}
