// Package metrics Prometheus 지표
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK           = "ok"
	ResultBadRequest   = "bad_request"
	ResultError        = "error"
	ResultConflict     = "conflict"
	ResultUnauthorized = "unauthorized"
)

var (
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropapp_predictions_total",
			Help: "Total number of prediction requests by result",
		},
		[]string{"result"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cropapp_prediction_duration_seconds",
			Help:    "Duration of image decoding, preprocessing and inference in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ModelStrategy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cropapp_model_strategy_info",
			Help: "Loading strategy that produced the serving model (1 for the active one)",
		},
		[]string{"strategy"},
	)

	FarmerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropapp_farmer_requests_total",
			Help: "Total number of farmer register/login requests by result",
		},
		[]string{"op", "result"},
	)
)

// RecordPrediction 추론 요청 결과와 소요 시간 기록
func RecordPrediction(result string, duration time.Duration) {
	Predictions.WithLabelValues(result).Inc()
	if result == ResultOK {
		PredictionDuration.Observe(duration.Seconds())
	}
}

// SetModelStrategy 사용 중인 모델 로드 전략 기록
func SetModelStrategy(strategy string) {
	ModelStrategy.Reset()
	ModelStrategy.WithLabelValues(strategy).Set(1)
}

// RecordFarmerRequest 등록/로그인 요청 결과 기록
func RecordFarmerRequest(op, result string) {
	FarmerRequests.WithLabelValues(op, result).Inc()
}
