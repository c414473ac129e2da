// Package metrics 汇总账本服务的 Prometheus 指标。
// 所有方法对 nil *Metrics 安全，未启用指标时组件可以直接传 nil。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 变更结果标签取值
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // 业务规则拒绝
	OutcomeError    = "error"    // 存储等内部错误
)

// Metrics 持有所有指标句柄。
type Metrics struct {
	mutations       *prometheus.CounterVec
	broadcasts      *prometheus.CounterVec
	broadcastErrors prometheus.Counter
	serializerRooms prometheus.Gauge
}

// New 在 reg 上注册指标。reg 为 nil 时使用一个新的私有 Registry。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_mutations_total",
			Help: "number of room mutations by action and outcome",
		}, []string{"action", "outcome"}),
		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_broadcasts_total",
			Help: "number of messages published to room channels",
		}, []string{"kind"}),
		broadcastErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "desk_broadcast_errors_total",
			Help: "number of failed room channel publishes",
		}),
		serializerRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "desk_serializer_rooms",
			Help: "number of rooms with a live mutation queue",
		}),
	}
}

// Mutation 记录一次变更的结果。
func (m *Metrics) Mutation(action, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(action, outcome).Inc()
}

// Broadcast 记录一次发布。
func (m *Metrics) Broadcast(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.broadcastErrors.Inc()
		return
	}
	m.broadcasts.WithLabelValues(kind).Inc()
}

// QueueStarted 和 QueueStopped 维护活跃房间队列数。
func (m *Metrics) QueueStarted() {
	if m == nil {
		return
	}
	m.serializerRooms.Inc()
}

func (m *Metrics) QueueStopped() {
	if m == nil {
		return
	}
	m.serializerRooms.Dec()
}
