package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/llm"
)

// ErrTooManyCandidates marks a review stage skipped because the candidate
// batch exceeds the configured bound.
var ErrTooManyCandidates = errors.New("too many oracle candidates")

const reviewPrompt = `You are reviewing files from a source repository to decide how useful each one is for understanding and modifying the codebase. For every file listed below, answer with exactly one line in the form:

path: VERDICT, short reason

VERDICT must be HIGH, MEDIUM, or LOW. Use the task context to judge usefulness. Do not add any other lines.

Task context: %s

Files:
%s`

// Verdict is one parsed oracle response line.
type Verdict struct {
	Path      string
	Relevance Relevance
	Reason    string
}

// Oracle reviews undecided classifications with project-level judgment.
type Oracle interface {
	Review(ctx context.Context, candidates []Classification, taskContext string) ([]Verdict, error)
}

// LLMOracle asks a chat model to grade files.
type LLMOracle struct {
	client *llm.Client
}

// NewLLMOracle wraps a completion client as a relevance oracle.
func NewLLMOracle(client *llm.Client) *LLMOracle {
	return &LLMOracle{client: client}
}

// Review sends all candidates in one request and parses the verdict lines.
func (o *LLMOracle) Review(ctx context.Context, candidates []Classification, taskContext string) ([]Verdict, error) {
	if taskContext == "" {
		taskContext = "general code exploration"
	}

	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s (%.1f KB, currently %s)\n", c.Path, c.SizeKB, c.Relevance)
	}

	resp, err := o.client.Complete(ctx, fmt.Sprintf(reviewPrompt, taskContext, b.String()))
	if err != nil {
		return nil, fmt.Errorf("relevance review: %w", err)
	}
	return parseVerdicts(resp), nil
}

// parseVerdicts reads "path: VERDICT, reason" lines. Lines that do not parse
// are dropped so the rule-based classification stands for those paths.
func parseVerdicts(resp string) []Verdict {
	var verdicts []Verdict
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		p, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		word, reason, _ := strings.Cut(rest, ",")

		var rel Relevance
		switch strings.ToUpper(strings.TrimSpace(word)) {
		case "HIGH":
			rel = High
		case "MEDIUM":
			rel = Medium
		case "LOW":
			rel = Low
		default:
			continue
		}
		verdicts = append(verdicts, Verdict{
			Path:      strings.TrimSpace(p),
			Relevance: rel,
			Reason:    strings.TrimSpace(reason),
		})
	}
	return verdicts
}

// Refine runs the oracle stage over rule results. The stage is skipped
// outright when there is nothing to review, when the candidate set exceeds
// maxCandidates, or when the oracle call fails; rule results stand in every
// skipped case.
func Refine(ctx context.Context, oracle Oracle, cls []Classification, taskContext string, maxCandidates int, log *zap.Logger) []Classification {
	if oracle == nil {
		return cls
	}

	var candidates []Classification
	for _, c := range cls {
		if c.Relevance == Medium || c.Relevance == Low {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return cls
	}
	if len(candidates) > maxCandidates {
		log.Warn("skipping relevance oracle",
			zap.Error(ErrTooManyCandidates),
			zap.Int("candidates", len(candidates)),
			zap.Int("max", maxCandidates))
		return cls
	}

	verdicts, err := oracle.Review(ctx, candidates, taskContext)
	if err != nil {
		log.Warn("relevance oracle failed, keeping rule results", zap.Error(err))
		return cls
	}

	byPath := make(map[string]Verdict, len(verdicts))
	for _, v := range verdicts {
		byPath[v.Path] = v
	}

	out := make([]Classification, len(cls))
	copy(out, cls)
	for i, c := range out {
		if c.Relevance != Medium && c.Relevance != Low {
			continue
		}
		v, ok := byPath[c.Path]
		if !ok {
			continue
		}
		out[i].Relevance = v.Relevance
		out[i].Reason = "oracle: " + v.Reason
	}
	return out
}
