package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/toozej/diagramcheck/internal/discovery"
	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/internal/provision"
	"github.com/toozej/diagramcheck/internal/render"
	"github.com/toozej/diagramcheck/internal/types"
)

func init() {
	logrus.SetLevel(logrus.ErrorLevel)
}

// fakeRenderer fails the diagrams listed in errs and passes everything else.
type fakeRenderer struct {
	format   types.Format
	errs     map[string]error
	rendered []string
}

func (f *fakeRenderer) Format() types.Format { return f.format }

func (f *fakeRenderer) Render(_ context.Context, d types.Diagram) error {
	f.rendered = append(f.rendered, filepath.Base(d.Path))
	return f.errs[filepath.Base(d.Path)]
}

// exitExecutor exits 0 for every command.
type exitExecutor struct {
	calls int32
}

func (e *exitExecutor) Run(context.Context, process.Command) (*process.Result, error) {
	atomic.AddInt32(&e.calls, 1)
	return &process.Result{}, nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func discover(t *testing.T, root string) *discovery.Set {
	t.Helper()
	set, err := discovery.Discover(root, discovery.Options{})
	require.NoError(t, err)
	return set
}

func TestSuite_Checks(t *testing.T) {
	root := writeTree(t, map[string]string{
		"arch/context.puml": "@startuml\n@enduml\n",
		"arch/seq.puml":     "@startuml\n@enduml\n",
		"flows/login.mmd":   "graph TD\n",
		"README.md":         "not a diagram",
	})
	set := discover(t, root)

	suite := NewSuite(nil, root)
	checks := suite.Checks(set)

	ids := make([]string, 0, len(checks))
	perFormat := map[types.Format]int{}
	for _, c := range checks {
		ids = append(ids, c.ID)
		perFormat[c.Diagram.Format]++
	}
	assert.Equal(t, []string{"arch/context.puml", "arch/seq.puml", "flows/login.mmd"}, ids)
	assert.Equal(t, set.Count(types.FormatPlantUML), perFormat[types.FormatPlantUML])
	assert.Equal(t, set.Count(types.FormatMermaid), perFormat[types.FormatMermaid])
}

func TestSuite_CheckIDOutsideBaseDir(t *testing.T) {
	suite := NewSuite(nil, t.TempDir())
	other := filepath.Join(t.TempDir(), "x.puml")
	assert.Equal(t, filepath.ToSlash(other), suite.checkID(other))
}

func TestSuite_Run(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok.puml":     "",
		"broken.puml": "",
		"ok.mmd":      "",
		"slow.mmd":    "",
	})
	plantuml := &fakeRenderer{format: types.FormatPlantUML, errs: map[string]error{
		"broken.puml": &render.RenderError{Command: "java -jar plantuml.jar", ExitCode: 200, Stderr: "Syntax Error?"},
	}}
	mermaid := &fakeRenderer{format: types.FormatMermaid, errs: map[string]error{
		"slow.mmd": &render.TimeoutError{Command: "npx", Stderr: "hung", Err: process.ErrTimeout},
	}}
	suite := NewSuite(nil, root, plantuml, mermaid)

	var streamed []string
	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{
		OnOutcome: func(o types.Outcome) { streamed = append(streamed, o.ID) },
	})

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, []string{"broken.puml", "ok.puml", "ok.mmd", "slow.mmd"}, streamed)
	assert.False(t, report.Passed())
	assert.NotEmpty(t, report.RunID)

	byID := map[string]types.Outcome{}
	for _, o := range report.Outcomes {
		byID[o.ID] = o
	}

	broken := byID["broken.puml"]
	assert.Equal(t, types.StatusFail, broken.Status)
	assert.Equal(t, types.FailureRender, broken.Kind)
	assert.Equal(t, 200, broken.ExitCode)
	assert.Equal(t, "Syntax Error?", broken.Stderr)
	assert.Equal(t, "java -jar plantuml.jar", broken.Command)

	slow := byID["slow.mmd"]
	assert.Equal(t, types.FailureTimeout, slow.Kind)
	assert.Equal(t, -1, slow.ExitCode)
	assert.Equal(t, "hung", slow.Stderr)

	okPlantUML, okMermaid := byID["ok.puml"], byID["ok.mmd"]
	assert.True(t, okPlantUML.Passed())
	assert.True(t, okMermaid.Passed())

	assert.Equal(t, 4, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Passed)
	assert.Equal(t, 2, report.Summary.Failed)
	assert.Equal(t, map[types.FailureKind]int{types.FailureRender: 1, types.FailureTimeout: 1}, report.Summary.ByKind)
	assert.Len(t, report.Failures(), 2)
}

func TestSuite_RunFailFast(t *testing.T) {
	root := writeTree(t, map[string]string{"a.puml": "", "b.puml": "", "c.mmd": ""})
	plantuml := &fakeRenderer{format: types.FormatPlantUML, errs: map[string]error{
		"a.puml": errors.New("boom"),
	}}
	mermaid := &fakeRenderer{format: types.FormatMermaid}
	suite := NewSuite(nil, root, plantuml, mermaid)

	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{FailFast: true})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.FailureRender, report.Outcomes[0].Kind)
	assert.Equal(t, []string{"a.puml"}, plantuml.rendered)
	assert.Empty(t, mermaid.rendered)
}

func TestSuite_RunWithoutRenderer(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mmd": ""})
	suite := NewSuite(nil, root)

	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.FailureLaunch, report.Outcomes[0].Kind)
	assert.Contains(t, report.Outcomes[0].Message, "mermaid")
}

func TestSuite_RunStopsOnCancelledContext(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mmd": "", "b.mmd": ""})
	mermaid := &fakeRenderer{format: types.FormatMermaid}
	suite := NewSuite(nil, root, mermaid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := suite.Run(ctx, suite.Checks(discover(t, root)), RunOptions{})

	assert.Empty(t, report.Outcomes)
	assert.True(t, report.Passed())
}

func stdlibZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("plantuml-stdlib-master/stdlib/C4/C4.puml")
	require.NoError(t, err)
	_, err = w.Write([]byte("@startuml\n@enduml\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// dependencyServer serves the jar and stdlib, or 404 for everything when broken.
func dependencyServer(t *testing.T, broken bool) (*httptest.Server, *int32) {
	t.Helper()
	archive := stdlibZip(t)
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch {
		case broken:
			http.NotFound(w, r)
		case r.URL.Path == "/plantuml.jar":
			_, _ = w.Write([]byte("jar"))
		default:
			_, _ = w.Write(archive)
		}
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestSession(t *testing.T, server *httptest.Server) *Session {
	t.Helper()
	prov := provision.New(filepath.Join(t.TempDir(), "cache"), provision.NewHTTPFetcher(10*time.Second))
	return NewSession(prov,
		provision.PlantUMLJar(server.URL+"/plantuml.jar", ""),
		provision.PlantUMLStdlib(server.URL+"/master.zip"),
	)
}

func TestSuite_AcquisitionFailureOnlyFailsPlantUML(t *testing.T) {
	server, hits := dependencyServer(t, true)
	session := newTestSession(t, server)
	executor := &exitExecutor{}
	suite := NewSuite(session, "",
		render.NewPlantUML(session, executor, render.PlantUMLOptions{}),
		render.NewMermaid(executor, render.MermaidOptions{Package: "pkg"}),
	)
	root := writeTree(t, map[string]string{"a.puml": "", "b.puml": "", "c.mmd": ""})

	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{})

	require.Len(t, report.Outcomes, 3)
	for _, o := range report.Outcomes {
		if o.Diagram.Format == types.FormatPlantUML {
			assert.Equal(t, types.FailureAcquisition, o.Kind, o.ID)
			assert.Contains(t, o.Message, "plantuml.jar")
		} else {
			assert.True(t, o.Passed(), o.ID)
		}
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "acquisition is attempted once per session")
	assert.Equal(t, int32(1), atomic.LoadInt32(&executor.calls), "only mermaid launches")
}

func TestSuite_ProvisionsOnceForAllPlantUMLChecks(t *testing.T) {
	server, hits := dependencyServer(t, false)
	session := newTestSession(t, server)
	executor := &exitExecutor{}
	suite := NewSuite(session, "", render.NewPlantUML(session, executor, render.PlantUMLOptions{}))
	root := writeTree(t, map[string]string{"a.puml": "", "b.puml": "", "c.puml": ""})

	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{})

	assert.True(t, report.Passed())
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "one request for the jar and one for the stdlib")
	assert.Equal(t, int32(3), atomic.LoadInt32(&executor.calls))

	assets, err := session.PlantUMLAssets(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, assets.Jar)
	assert.DirExists(t, assets.Stdlib)
	assert.Equal(t, filepath.Join(session.CacheDir(), "plantuml-stdlib", "stdlib"), assets.Stdlib)
}

func TestSuite_MermaidOnlySkipsProvisioning(t *testing.T) {
	server, hits := dependencyServer(t, false)
	session := newTestSession(t, server)
	executor := &exitExecutor{}
	suite := NewSuite(session, "",
		render.NewPlantUML(session, executor, render.PlantUMLOptions{}),
		render.NewMermaid(executor, render.MermaidOptions{Package: "pkg"}),
	)
	root := writeTree(t, map[string]string{"a.mmd": "graph TD\n"})

	report := suite.Run(context.Background(), suite.Checks(discover(t, root)), RunOptions{})

	assert.True(t, report.Passed())
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestReport_Writers(t *testing.T) {
	report := NewReport()
	report.Add(types.Outcome{ID: "a.puml", Diagram: types.Diagram{Path: "/r/a.puml", Format: types.FormatPlantUML}, Status: types.StatusPass})
	report.Add(types.Outcome{
		ID:       "b.mmd",
		Diagram:  types.Diagram{Path: "/r/b.mmd", Format: types.FormatMermaid},
		Status:   types.StatusFail,
		Kind:     types.FailureRender,
		ExitCode: 1,
	})
	report.Finish()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.WriteJSON(&buf))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, report.RunID, decoded["run_id"])
		summary := decoded["summary"].(map[string]interface{})
		assert.Equal(t, float64(1), summary["failed"])
		assert.Len(t, decoded["outcomes"], 2)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.WriteYAML(&buf))

		var decoded struct {
			RunID    string `yaml:"run_id"`
			Outcomes []struct {
				ID   string `yaml:"id"`
				Kind string `yaml:"kind"`
			} `yaml:"outcomes"`
		}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, report.RunID, decoded.RunID)
		require.Len(t, decoded.Outcomes, 2)
		assert.Equal(t, "render", decoded.Outcomes[1].Kind)
		assert.Empty(t, decoded.Outcomes[0].Kind)
	})
}
