// Package metrics exposes Prometheus instrumentation for backend calls,
// saga compensations, logins and store dispatches.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BackendCalls   *prometheus.CounterVec
	BackendLatency *prometheus.HistogramVec
	Compensations  *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "backend_calls_total",
			Help:      "Remote data service calls by operation, table and outcome.",
		}, []string{"op", "table", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "backend_call_seconds",
			Help:      "Remote data service call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "table"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "saga_compensations_total",
			Help:      "Compensating actions run after a failed multi-step operation.",
		}, []string{"step", "outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "store_dispatches_total",
			Help:      "Actions dispatched to the state store.",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.BackendCalls, m.BackendLatency, m.Compensations, m.Logins, m.Dispatches)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeCall(op, table string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(op, table, outcome(err)).Inc()
	m.BackendLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
}

// Compensated records one compensating action.
func (m *Metrics) Compensated(step string, err error) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(step, outcome(err)).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

// Dispatched records one store action.
func (m *Metrics) Dispatched(action string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(action).Inc()
}

// Instrument wraps b so every call is counted and timed.
func Instrument(b remote.Backend, m *Metrics) remote.Backend {
	if m == nil {
		return b
	}
	return &instrumented{next: b, m: m}
}

type instrumented struct {
	next remote.Backend
	m    *Metrics
}

func (i *instrumented) Select(ctx context.Context, table string, q remote.Query) (rows []remote.Row, err error) {
	defer func(start time.Time) { i.m.observeCall("select", table, start, err) }(time.Now())
	return i.next.Select(ctx, table, q)
}

func (i *instrumented) Insert(ctx context.Context, table string, rows ...remote.Row) (out []remote.Row, err error) {
	defer func(start time.Time) { i.m.observeCall("insert", table, start, err) }(time.Now())
	return i.next.Insert(ctx, table, rows...)
}

func (i *instrumented) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) (out []remote.Row, err error) {
	defer func(start time.Time) { i.m.observeCall("update", table, start, err) }(time.Now())
	return i.next.Update(ctx, table, patch, filters...)
}

func (i *instrumented) Delete(ctx context.Context, table string, filters ...remote.Filter) (err error) {
	defer func(start time.Time) { i.m.observeCall("delete", table, start, err) }(time.Now())
	return i.next.Delete(ctx, table, filters...)
}

func (i *instrumented) Upsert(ctx context.Context, table string, onConflict []string, rows ...remote.Row) (out []remote.Row, err error) {
	defer func(start time.Time) { i.m.observeCall("upsert", table, start, err) }(time.Now())
	return i.next.Upsert(ctx, table, onConflict, rows...)
}

func (i *instrumented) SignInWithPassword(ctx context.Context, email, password string) (s remote.Session, err error) {
	defer func(start time.Time) { i.m.observeCall("sign_in", "", start, err) }(time.Now())
	return i.next.SignInWithPassword(ctx, email, password)
}

func (i *instrumented) SignOut(ctx context.Context) (err error) {
	defer func(start time.Time) { i.m.observeCall("sign_out", "", start, err) }(time.Now())
	return i.next.SignOut(ctx)
}

func (i *instrumented) OnAuthStateChange(ctx context.Context) (<-chan authevents.Event, error) {
	return i.next.OnAuthStateChange(ctx)
}

func (i *instrumented) CreateUser(ctx context.Context, email, password string) (u remote.AuthUser, err error) {
	defer func(start time.Time) { i.m.observeCall("create_user", "", start, err) }(time.Now())
	return i.next.CreateUser(ctx, email, password)
}

func (i *instrumented) UpdateUser(ctx context.Context, id, email, password string) (u remote.AuthUser, err error) {
	defer func(start time.Time) { i.m.observeCall("update_user", "", start, err) }(time.Now())
	return i.next.UpdateUser(ctx, id, email, password)
}

func (i *instrumented) DeleteUser(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { i.m.observeCall("delete_user", "", start, err) }(time.Now())
	return i.next.DeleteUser(ctx, id)
}
