package prom

import (
	"sync"

	xhttp "github.com/afrisend/comms-gateway/pkg/http"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemMessages = "message"

	MetricMessageDispatchDuration = "dispatch_duration_seconds"
	MetricMessageDispatchTotal    = "dispatch_total"
	MetricOTPRequestTotal         = "otp_requests_total"
)

var (
	registerMu sync.Mutex
	namespace  = "none"

	// MetricSystemEnabled gates all recording; binaries that never call
	// Create (the cli, tests) record nothing.
	MetricSystemEnabled = false

	counterVecs   = make(map[string]*prometheus.CounterVec)
	histogramVecs = make(map[string]*prometheus.HistogramVec)

	defaultLabels prometheus.Labels
)

// Create registers the gateway's metric set under nameSpace with env
// and instance as constant labels.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createHistogramVec(SystemMessages, MetricMessageDispatchDuration, []string{"provider", "type"}))
	hasError(createCounterVec(SystemMessages, MetricMessageDispatchTotal, []string{"provider", "status"}))
	hasError(createCounterVec(SystemMessages, MetricOTPRequestTotal, []string{"status"}))

	return err
}

// ListenAndServer blocks serving the prometheus scrape endpoint.
func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	counterVecs[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(counterVecs[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	histogramVecs[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	return prometheus.Register(histogramVecs[subsystem+name])
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counterVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := histogramVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// AddMessageDispatchDuration records one provider send, labeled by the
// carrier that handled it and the message type.
func AddMessageDispatchDuration(duration float64, provider, msgType string) {
	AddHistogramVec(SystemMessages, MetricMessageDispatchDuration, duration, provider, msgType)
}

func IncMessageDispatched(provider, status string) {
	IncCounterVec(SystemMessages, MetricMessageDispatchTotal, provider, status)
}

func IncOTPRequest(status string) {
	IncCounterVec(SystemMessages, MetricOTPRequestTotal, status)
}
