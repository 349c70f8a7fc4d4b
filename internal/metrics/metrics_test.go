package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/investment"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

func TestRecorder_Observations(t *testing.T) {
	r := NewRecorder()

	r.ObserveEvaluation(20*time.Millisecond, 100, 3)
	r.ObserveEvaluation(10*time.Millisecond, 50, 0)
	r.ObserveOptimization("global-stochastic", domain.ExitSuccess, time.Second, 400)
	r.ObserveOptimization("global-stochastic", domain.ExitInfeasible, time.Second, 100)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.evaluations))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.samples))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.excluded))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.optimizations.WithLabelValues("global-stochastic", "success")))
	assert.Equal(t, 500.0, testutil.ToFloat64(r.oracleEvaluations.WithLabelValues("global-stochastic")))
}

func TestRecorder_WiredIntoCore(t *testing.T) {
	r := NewRecorder()
	c, err := design.Compile(domaintest.TrancheDesign())
	require.NoError(t, err)
	a, err := investment.NewAllocator(c, c.Tranches())
	require.NoError(t, err)

	config := evaluation.DefaultConfig()
	config.Observer = r
	e := evaluation.New(c, a, config)
	o := optimizer.New(e, optimizer.Options{SampleCount: 5, MaxIterations: 3, Observer: r})

	_, err = e.Evaluate(context.Background(), domain.Investment{"Widgets": 1000}, 5, nil)
	require.NoError(t, err)
	_, err = o.Optimize(context.Background(), optimizer.Request{Target: "Output"})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(r.optimizations))
	assert.Positive(t, testutil.ToFloat64(r.evaluations), "the optimizer's oracle evaluations go through the evaluator")
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveEvaluation(time.Millisecond, 10, 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "tyche_evaluations_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
