package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/llm"
)

type fakeOracle struct {
	verdicts []Verdict
	err      error
	calls    int
}

func (f *fakeOracle) Review(_ context.Context, candidates []Classification, _ string) ([]Verdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.verdicts, nil
}

func ruleResults() []Classification {
	return []Classification{
		{Path: "main.go", Relevance: High, Reason: "core source file (go)"},
		{Path: "notes.txt", Relevance: Medium, Reason: "configuration or documentation"},
		{Path: "blob.dat", Relevance: Low, Reason: "large file (2048 KB)"},
	}
}

func TestRefineAppliesVerdicts(t *testing.T) {
	oracle := &fakeOracle{verdicts: []Verdict{
		{Path: "notes.txt", Relevance: High, Reason: "deployment runbook"},
	}}

	out := Refine(context.Background(), oracle, ruleResults(), "fix deploys", 50, zap.NewNop())
	require.Len(t, out, 3)

	assert.Equal(t, High, out[1].Relevance)
	assert.Equal(t, "oracle: deployment runbook", out[1].Reason)

	// Paths absent from the response keep their rule classification.
	assert.Equal(t, Low, out[2].Relevance)
	assert.Equal(t, "large file (2048 KB)", out[2].Reason)

	// HIGH files are never sent for review or overridden.
	assert.Equal(t, High, out[0].Relevance)
	assert.Equal(t, "core source file (go)", out[0].Reason)
}

func TestRefineNeverTouchesHighFiles(t *testing.T) {
	oracle := &fakeOracle{verdicts: []Verdict{
		{Path: "main.go", Relevance: Low, Reason: "should be ignored"},
	}}

	out := Refine(context.Background(), oracle, ruleResults(), "", 50, zap.NewNop())
	assert.Equal(t, High, out[0].Relevance)
}

func TestRefineSkipsWhenTooManyCandidates(t *testing.T) {
	oracle := &fakeOracle{}
	out := Refine(context.Background(), oracle, ruleResults(), "", 1, zap.NewNop())

	assert.Equal(t, 0, oracle.calls)
	assert.Equal(t, ruleResults(), out)
}

func TestRefineSkipsOnOracleError(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}
	out := Refine(context.Background(), oracle, ruleResults(), "", 50, zap.NewNop())

	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, ruleResults(), out)
}

func TestRefineNoCandidates(t *testing.T) {
	oracle := &fakeOracle{}
	cls := []Classification{{Path: "main.go", Relevance: High}}
	out := Refine(context.Background(), oracle, cls, "", 50, zap.NewNop())

	assert.Equal(t, 0, oracle.calls)
	assert.Equal(t, cls, out)
}

func TestRefineNilOracle(t *testing.T) {
	out := Refine(context.Background(), nil, ruleResults(), "", 50, zap.NewNop())
	assert.Equal(t, ruleResults(), out)
}

func TestParseVerdicts(t *testing.T) {
	resp := `src/app.py: HIGH, central entry point
- docs/old.md: low, superseded by the wiki
config.yaml: Medium , ties services together
broken line without separator
mystery.txt: MAYBE, not a real verdict
: HIGH, no path
`
	verdicts := parseVerdicts(resp)
	require.Len(t, verdicts, 4)

	assert.Equal(t, Verdict{Path: "src/app.py", Relevance: High, Reason: "central entry point"}, verdicts[0])
	assert.Equal(t, Verdict{Path: "docs/old.md", Relevance: Low, Reason: "superseded by the wiki"}, verdicts[1])
	assert.Equal(t, Verdict{Path: "config.yaml", Relevance: Medium, Reason: "ties services together"}, verdicts[2])
	assert.Equal(t, Verdict{Path: "", Relevance: High, Reason: "no path"}, verdicts[3])
}

func TestParseVerdictsMissingReason(t *testing.T) {
	verdicts := parseVerdicts("a.py: HIGH")
	require.Len(t, verdicts, 1)
	assert.Equal(t, High, verdicts[0].Relevance)
	assert.Empty(t, verdicts[0].Reason)
}

func TestLLMOracleReview(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		gotPrompt = req.Messages[0].Content

		fmt.Fprint(w, `{"message":{"role":"assistant","content":"notes.txt: HIGH, runbook for the task"}}`)
	}))
	defer srv.Close()

	oracle := NewLLMOracle(llm.NewClient(srv.URL, "test-model", 5*time.Second))
	verdicts, err := oracle.Review(context.Background(), []Classification{
		{Path: "notes.txt", Relevance: Medium, SizeKB: 1.5},
	}, "fix deploys")
	require.NoError(t, err)

	require.Len(t, verdicts, 1)
	assert.Equal(t, "notes.txt", verdicts[0].Path)
	assert.Equal(t, High, verdicts[0].Relevance)

	assert.Contains(t, gotPrompt, "fix deploys")
	assert.Contains(t, gotPrompt, "notes.txt")
}
