// Package hybrid chooses between the local quantification core and a remote
// quantification service and reports which one produced the result.
package hybrid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/httputil"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/spectro"
)

var logf = monitoring.Component("hybrid")

// Strategy selects how a quantification is resolved.
type Strategy string

const (
	// StrategyLocal always runs the local core.
	StrategyLocal Strategy = "local"
	// StrategyAuto prefers the remote service and falls back to the local
	// core when it fails or none is configured.
	StrategyAuto Strategy = "auto"
)

// Result sources.
const (
	SourceLocal = "local"
	SourceAPI   = "api"
)

// QuantifyPath is the remote endpoint, relative to the service base URL.
const QuantifyPath = "/api/v1/quantify"

// Input is the quantification request.
type Input = analysis.Input

// Outcome is one authoritative quantification result and where it came from.
type Outcome struct {
	Result spectro.LocalQuantResult `json:"result"`
	Source string                   `json:"source"`
}

// Remote is a remote quantification service.
type Remote interface {
	Quantify(ctx context.Context, in Input) (spectro.LocalQuantResult, error)
}

// RemoteClient calls the quantification endpoint of an absorbance API server.
type RemoteClient struct {
	client  httputil.HTTPClient
	baseURL string
	timeout time.Duration
}

// NewRemoteClient returns a client for the service at baseURL. A zero timeout
// relies on ctx alone.
func NewRemoteClient(client httputil.HTTPClient, baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Quantify posts in to the remote endpoint.
func (c *RemoteClient) Quantify(ctx context.Context, in Input) (spectro.LocalQuantResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var out Outcome
	if err := httputil.PostJSON(ctx, c.client, c.baseURL+QuantifyPath, in, &out); err != nil {
		return spectro.LocalQuantResult{}, fmt.Errorf("remote quantify: %w", err)
	}
	return out.Result, nil
}

// Quantifier resolves a quantification with the local engine and an optional
// remote service.
type Quantifier struct {
	engine *analysis.Engine
	remote Remote
}

// NewQuantifier returns a quantifier. remote may be nil, in which case every
// strategy runs locally.
func NewQuantifier(engine *analysis.Engine, remote Remote) *Quantifier {
	if engine == nil {
		engine = analysis.NewEngine(nil)
	}
	return &Quantifier{engine: engine, remote: remote}
}

// NewFromConfig builds a quantifier whose remote is cfg's remote_url, if set.
func NewFromConfig(cfg *config.AnalysisConfig, client httputil.HTTPClient) *Quantifier {
	var remote Remote
	if url := cfg.GetRemoteURL(); url != "" {
		remote = NewRemoteClient(client, url, cfg.GetRemoteTimeout())
	}
	return NewQuantifier(analysis.NewEngine(cfg), remote)
}

// Quantify runs the strategy. Under StrategyAuto a remote failure falls back
// to the local core; cancellation of ctx never does, so a caller that
// abandons the request gets ctx's error rather than a late local result.
func (q *Quantifier) Quantify(ctx context.Context, in Input, strategy Strategy) (Outcome, error) {
	switch strategy {
	case StrategyLocal, StrategyAuto:
	default:
		return Outcome{}, spectro.Errorf(spectro.ErrValidation, "quantify", "unknown strategy %q", strategy)
	}

	var note string
	if strategy == StrategyAuto && q.remote != nil {
		res, err := q.remote.Quantify(ctx, in)
		if err == nil {
			return Outcome{Result: res, Source: SourceAPI}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		logf("remote quantification failed, using local core: %v", err)
		note = "remote quantification unavailable; computed locally"
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	out, err := q.engine.Quantify(in)
	if err != nil {
		return Outcome{}, err
	}
	if note != "" {
		out.Result.QA.Notes = append(out.Result.QA.Notes, note)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: out.Result, Source: SourceLocal}, nil
}
