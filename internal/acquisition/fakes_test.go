package acquisition

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/absorbance.report/internal/spectro"
	"github.com/banshee-data/absorbance.report/internal/testutil"
)

const (
	testDark    = 0.01
	testRef     = 0.5
	testPoints  = 32
	testSampleA = 0.45
)

var errCamera = errors.New("camera disconnected")

// fakeCapturer returns constant bursts per stage. Failures can be queued per
// stage, or per standard index for CALIB_CURVE.
type fakeCapturer struct {
	mu        sync.Mutex
	calls     []CaptureRequest
	fail      map[State]int
	failStd   map[int]int
	block     State
	started   chan struct{}
	cancelled chan struct{}
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		fail:      map[State]int{},
		failStd:   map[int]int{},
		started:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (f *fakeCapturer) Capture(ctx context.Context, req CaptureRequest) (spectro.Matrix, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block != "" && f.block == req.Stage
	fail := false
	if req.Stage == StateCalibCurve {
		if f.failStd[req.Standard] > 0 {
			f.failStd[req.Standard]--
			fail = true
		}
	} else if f.fail[req.Stage] > 0 {
		f.fail[req.Stage]--
		fail = true
	}
	f.mu.Unlock()

	if block {
		close(f.started)
		<-ctx.Done()
		close(f.cancelled)
		return nil, ctx.Err()
	}
	if fail {
		return nil, errCamera
	}

	switch req.Stage {
	case StateAcqDarkNoise:
		return testutil.ConstantBurst(4, testPoints, testDark), nil
	case StateAcqWhiteNoise:
		return testutil.ConstantBurst(4, testPoints, 0.6), nil
	case StateAcqRef1, StateAcqRef2:
		return testutil.ConstantBurst(4, testPoints, testRef), nil
	case StateAcqSample:
		return testutil.ConstantBurst(6, testPoints, testutil.SampleLevel(testDark, testRef, testSampleA)), nil
	case StateCalibCurve:
		if req.Concentration == 0 {
			return blankBurst(testPoints), nil
		}
		return testutil.ConstantBurst(4, testPoints, testutil.SampleLevel(testDark, testRef, 0.2*req.Concentration+0.05)), nil
	}
	return nil, errors.New("unexpected stage")
}

// blankBurst reads A = 0.05 ± 0.002 frame to frame, sitting on the intercept
// of A = 0.2·C + 0.05 with measurable noise for LOD/LOQ.
func blankBurst(points int) spectro.Matrix {
	lo := testutil.SampleLevel(testDark, testRef, 0.048)
	hi := testutil.SampleLevel(testDark, testRef, 0.052)
	return testutil.BurstFromSeries([]float64{lo, hi, lo, hi}, points)
}

func (f *fakeCapturer) stages() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Stage
	}
	return out
}

func (f *fakeCapturer) count(stage State) int {
	n := 0
	for _, s := range f.stages() {
		if s == stage {
			n++
		}
	}
	return n
}

type memProfiles struct {
	mu      sync.Mutex
	profile *spectro.DeviceProfile
	saveErr error
	saved   int
}

func (m *memProfiles) Load(ctx context.Context) (*spectro.DeviceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.Clone(), nil
}

func (m *memProfiles) Save(ctx context.Context, p *spectro.DeviceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profile = p.Clone()
	m.saved++
	return nil
}

func (m *memProfiles) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
	return nil
}

type memCurves struct {
	mu     sync.Mutex
	curves []*spectro.CalibrationCurve
}

func (m *memCurves) AddCurve(ctx context.Context, c *spectro.CalibrationCurve) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c.Clone()
	cp.ID = "curve-" + string(rune('a'+len(m.curves)))
	m.curves = append([]*spectro.CalibrationCurve{cp}, m.curves...)
	return cp.ID, nil
}

func (m *memCurves) LoadCurves(ctx context.Context, deviceHash string, limit int) ([]*spectro.CalibrationCurve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*spectro.CalibrationCurve
	for _, c := range m.curves {
		if deviceHash != "" && c.DeviceHash != "" && c.DeviceHash != deviceHash {
			continue
		}
		out = append(out, c.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memReports struct {
	mu      sync.Mutex
	reports []*spectro.AnalysisReport
}

func (m *memReports) SaveAnalysisReport(ctx context.Context, r *spectro.AnalysisReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return "report-1", nil
}
