package citecheck

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/veridexhq/veridex/internal/llm"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// Supported citation styles
const (
	StyleAPA7    = "apa7"
	StyleMLA9    = "mla9"
	StyleChicago = "chicago"
)

var (
	numericMarkerRe    = regexp.MustCompile(`\[(\d{1,3})\]`)
	footnoteMarkerRe   = regexp.MustCompile(`\^(\d{1,3})`)
	authorYearMarkerRe = regexp.MustCompile(`\(([A-Z][A-Za-z&.\- ]{1,40}),\s*(\d{4})[a-z]?\)`)
	yearRe             = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	urlRe              = regexp.MustCompile(`https?://[^\s<>"\)\]]+`)

	referencesHeadingRe = regexp.MustCompile(`(?im)^\s*(references|works cited|bibliography|reference list)\s*$`)
)

// Validator runs structural citation checks against an artifact. The
// checks are deterministic per style; the optional model-based pass is
// advisory and can only warn, never fail.
type Validator struct {
	store *store.Store
	llm   *llm.Client
	log   *logger.Logger
	cfg   model.CitationConfig
	urls  *URLChecker

	mu      sync.Mutex
	pending map[string]*asyncRun // In-flight async runs, per artifact
}

// asyncRun identifies one background validation. The pointer doubles as
// the run's token, so a finished run can tell whether the pending entry
// is still its own before removing it.
type asyncRun struct {
	cancel context.CancelFunc
}

// NewValidator creates a citation validator
func NewValidator(st *store.Store, llmClient *llm.Client, log *logger.Logger, cfg model.CitationConfig) *Validator {
	var urls *URLChecker
	if cfg.ResolveURLs {
		urls = NewURLChecker(cfg.UserAgent, 10*time.Second)
	}
	return &Validator{
		store:   st,
		llm:     llmClient,
		log:     log,
		cfg:     cfg,
		urls:    urls,
		pending: make(map[string]*asyncRun),
	}
}

// Validate checks one artifact's citations. Documents over the async
// threshold are queued and validated in the background; a second request
// for the same artifact cancels the earlier run, so only the newest
// result lands.
func (v *Validator) Validate(ctx context.Context, artifactID, style string) (*model.CitationReport, error) {
	artifact, err := v.store.GetArtifact(artifactID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	if style == "" {
		style = StyleAPA7
	}
	if style != StyleAPA7 && style != StyleMLA9 && style != StyleChicago {
		return nil, fmt.Errorf("unknown citation style %q", style)
	}

	if len([]rune(artifact.Text)) > v.cfg.AsyncRuneThreshold {
		report := &model.CitationReport{
			ArtifactID: artifact.ID,
			Style:      style,
			Status:     model.CitationQueued,
			ComputedAt: time.Now().UTC(),
		}
		if err := v.store.SaveCitationReport(report); err != nil {
			return nil, fmt.Errorf("persist report: %w", err)
		}
		v.startAsync(artifact, style)
		return report, nil
	}

	return v.run(ctx, artifact, style)
}

// startAsync launches a background validation, cancelling any earlier
// run for the same artifact
func (v *Validator) startAsync(artifact *model.Artifact, style string) {
	runCtx, cancel := context.WithCancel(context.Background())
	run := &asyncRun{cancel: cancel}

	v.mu.Lock()
	if prev, ok := v.pending[artifact.ID]; ok {
		prev.cancel()
	}
	v.pending[artifact.ID] = run
	v.mu.Unlock()

	go func() {
		defer v.finishAsync(artifact.ID, run)
		if _, err := v.run(runCtx, artifact, style); err != nil && runCtx.Err() == nil {
			v.log.Error("background citation validation failed",
				"artifact_id", artifact.ID, "error", err)
		}
	}()
}

// finishAsync clears the pending entry, but only if it still belongs to
// this run. A superseded run must never remove its successor's entry.
func (v *Validator) finishAsync(artifactID string, run *asyncRun) {
	v.mu.Lock()
	if v.pending[artifactID] == run {
		delete(v.pending, artifactID)
	}
	v.mu.Unlock()
}

// run executes the full check suite and persists the report
func (v *Validator) run(ctx context.Context, artifact *model.Artifact, style string) (*model.CitationReport, error) {
	issues := v.structuralIssues(ctx, artifact.Text, style)

	status := model.CitationPass
	for _, issue := range issues {
		if !issue.Advisory {
			status = model.CitationFail
			break
		}
	}

	if status != model.CitationFail && v.cfg.ModelCheck && v.llm != nil {
		advisory := v.advisoryIssues(ctx, artifact.Text, style)
		if len(advisory) > 0 {
			issues = append(issues, advisory...)
			status = model.CitationWarn
		}
	}
	if ctx.Err() != nil {
		// Cancelled by a newer request; do not overwrite its result
		return nil, ctx.Err()
	}

	report := &model.CitationReport{
		ArtifactID: artifact.ID,
		Style:      style,
		Status:     status,
		Issues:     issues,
		ComputedAt: time.Now().UTC(),
	}
	if err := v.store.SaveCitationReport(report); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}
	return report, nil
}

// structuralIssues runs the deterministic checks: marker resolution,
// orphan and malformed references, and optional URL liveness.
func (v *Validator) structuralIssues(ctx context.Context, text, style string) []model.CitationIssue {
	var issues []model.CitationIssue

	body, refs := splitReferences(text)
	markers := collectMarkers(body)

	if len(markers.numeric) == 0 && len(markers.authorYear) == 0 && len(refs) == 0 {
		return []model.CitationIssue{{
			Code:  model.IssueMissingCitation,
			Where: "document",
			Hint:  "no citation markers or reference list found",
		}}
	}

	cited := make(map[int]bool)
	for _, n := range markers.numeric {
		cited[n] = true
		if n < 1 || n > len(refs) {
			issues = append(issues, model.CitationIssue{
				Code:  model.IssueUnresolvedMarker,
				Where: fmt.Sprintf("[%d]", n),
				Hint:  fmt.Sprintf("reference list has %d entries", len(refs)),
			})
		}
	}

	matchedRefs := make(map[int]bool)
	for _, ay := range markers.authorYear {
		surname := strings.ToLower(primarySurname(ay.author))
		found := false
		for i, ref := range refs {
			lower := strings.ToLower(ref)
			if strings.Contains(lower, surname) && strings.Contains(ref, ay.year) {
				matchedRefs[i] = true
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, model.CitationIssue{
				Code:  model.IssueUnresolvedMarker,
				Where: fmt.Sprintf("(%s, %s)", ay.author, ay.year),
				Hint:  "no matching entry in the reference list",
			})
		}
	}

	for i, ref := range refs {
		numberCited := len(markers.numeric) > 0 && cited[i+1]
		if !numberCited && !matchedRefs[i] && len(markers.authorYear)+len(markers.numeric) > 0 {
			issues = append(issues, model.CitationIssue{
				Code:  model.IssueOrphanReference,
				Where: truncate(ref, 60),
				Hint:  "reference entry is never cited in the body",
			})
		}
		if !wellFormedReference(ref, style) {
			issues = append(issues, model.CitationIssue{
				Code:  model.IssueMalformedReference,
				Where: truncate(ref, 60),
				Hint:  styleHint(style),
			})
		}
	}

	if v.urls != nil {
		for _, ref := range refs {
			for _, rawURL := range urlRe.FindAllString(ref, -1) {
				if err := v.urls.Check(ctx, rawURL); err != nil {
					issues = append(issues, model.CitationIssue{
						Code:  model.IssueDeadReferenceURL,
						Where: rawURL,
						Hint:  err.Error(),
					})
				}
			}
		}
	}
	return issues
}

// advisoryIssues runs the model-based uncited-claim detector. Failures
// here are logged and swallowed; advice is optional.
func (v *Validator) advisoryIssues(ctx context.Context, text, style string) []model.CitationIssue {
	var out llm.CitationAdvisoryOutput
	err := v.llm.CompleteJSON(ctx, llm.SchemaCitationAdvisory, llm.SystemPrompt(),
		llm.BuildCitationAdvisoryPrompt(styleName(style), text), &out)
	if err != nil {
		v.log.Warn("advisory citation check failed", "error", err)
		return nil
	}

	issues := make([]model.CitationIssue, 0, len(out.Issues))
	for _, issue := range out.Issues {
		issues = append(issues, model.CitationIssue{
			Code:     model.IssuePossibleUncited,
			Where:    issue.Where,
			Hint:     issue.Hint,
			Advisory: true,
		})
	}
	return issues
}

type authorYear struct {
	author string
	year   string
}

type markerSet struct {
	numeric    []int
	authorYear []authorYear
}

func collectMarkers(body string) markerSet {
	var m markerSet
	for _, match := range numericMarkerRe.FindAllStringSubmatch(body, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil {
			m.numeric = append(m.numeric, n)
		}
	}
	for _, match := range footnoteMarkerRe.FindAllStringSubmatch(body, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil {
			m.numeric = append(m.numeric, n)
		}
	}
	for _, match := range authorYearMarkerRe.FindAllStringSubmatch(body, -1) {
		m.authorYear = append(m.authorYear, authorYear{author: match[1], year: match[2]})
	}
	return m
}

// splitReferences separates the body from the reference list. The list
// starts at the last heading that looks like one; each subsequent
// non-empty line is one entry.
func splitReferences(text string) (string, []string) {
	locs := referencesHeadingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}
	last := locs[len(locs)-1]
	body := text[:last[0]]

	var refs []string
	for _, line := range strings.Split(text[last[1]:], "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			refs = append(refs, line)
		}
	}
	return body, refs
}

// wellFormedReference applies a loose per-style shape check. This catches
// pasted URLs and fragments, not every style-guide deviation.
func wellFormedReference(ref, style string) bool {
	switch style {
	case StyleAPA7, StyleChicago:
		// Author part, a year, and a period-delimited structure
		return yearRe.MatchString(ref) && strings.Count(ref, ".") >= 1 && len(ref) > 15
	case StyleMLA9:
		// Author. Title. at minimum
		return strings.Count(ref, ".") >= 2 && len(ref) > 15
	}
	return true
}

func styleHint(style string) string {
	switch style {
	case StyleAPA7:
		return "expected author, (year), title and source"
	case StyleMLA9:
		return "expected author, title, container and date"
	case StyleChicago:
		return "expected author, title, publisher and year"
	}
	return ""
}

func styleName(style string) string {
	switch style {
	case StyleAPA7:
		return "APA 7th edition"
	case StyleMLA9:
		return "MLA 9th edition"
	case StyleChicago:
		return "Chicago"
	}
	return style
}

// primarySurname extracts the first author surname from a marker author
// part like "Smith & Jones" or "Smith et al."
func primarySurname(author string) string {
	author = strings.TrimSpace(author)
	for _, sep := range []string{" & ", " and ", ","} {
		if idx := strings.Index(author, sep); idx > 0 {
			author = author[:idx]
		}
	}
	return strings.TrimSuffix(strings.TrimSpace(author), " et al.")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
