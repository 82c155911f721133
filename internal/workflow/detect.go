package workflow

import (
	"fmt"
	"strings"
)

const (
	filesChangedBegin = "FILES_CHANGED_BEGIN"
	filesChangedEnd   = "FILES_CHANGED_END"
)

// makeContextSummary builds one rolling-context sentence for a completed
// worker pass (spec.md 4.4.6): role, task title, outcome, and the last
// non-empty transcript line as the "key result".
func makeContextSummary(role Role, taskTitle string, transcript []string, success bool) string {
	preview := "No detailed output was captured."
	for i := len(transcript) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(transcript[i]); trimmed != "" {
			preview = trimmed
			break
		}
	}
	outcome := "ended with a failure state"
	if success {
		outcome = "finished successfully"
	}
	return fmt.Sprintf("%s worked on %q and %s. Key result: %s.", role, taskTitle, outcome, preview)
}

// extractChangedFilesSummary pulls the FILES_CHANGED_BEGIN/END delimited
// block out of an implementor's transcript (spec.md 4.4.8), trimming and
// dropping blank lines. Absent the block, a placeholder is returned so the
// Auditor prompt always has something to read.
func extractChangedFilesSummary(transcript []string) string {
	merged := strings.Join(transcript, "\n")
	if block, ok := extractTaggedBlock(merged, filesChangedBegin, filesChangedEnd); ok {
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if normalized := strings.Join(lines, "\n"); normalized != "" {
			return normalized
		}
	}
	return "(no structured changed-files summary found in implementor output)"
}

func extractTaggedBlock(text, beginTag, endTag string) (string, bool) {
	beginIdx := strings.Index(text, beginTag)
	if beginIdx < 0 {
		return "", false
	}
	afterBegin := text[beginIdx+len(beginTag):]
	endIdx := strings.Index(afterBegin, endTag)
	if endIdx < 0 {
		return "", false
	}
	return strings.TrimSpace(afterBegin[:endIdx]), true
}

// auditStrictnessPolicy returns the prompt-facing guidance for an audit
// pass: strictness loosens as passes accumulate (spec.md 4.4.7). It is
// communicated to the agent but never enforced by the scheduler itself.
func auditStrictnessPolicy(pass uint8) string {
	switch pass {
	case 1:
		return "Pass 1 (strict): report all meaningful correctness, safety, reliability, and testability issues."
	case 2:
		return "Pass 2 (moderate): prioritize substantial issues and avoid minor nits that do not materially affect behavior."
	case 3:
		return "Pass 3 (targeted): focus only on high-impact defects or likely regressions."
	default:
		return "Pass 4+ (critical only): only fail for truly critical blockers that would prevent the broader plan from running."
	}
}

// auditDetectsIssues implements spec.md 4.4.7: the protocol token
// AUDIT_RESULT: PASS/FAIL on the first non-empty line wins outright;
// otherwise fall back to a keyword heuristic over the whole transcript.
func auditDetectsIssues(transcript []string) bool {
	if result, ok := parseAuditResultToken(transcript); ok {
		return !result
	}
	text := strings.ToLower(strings.Join(transcript, "\n"))
	if strings.Contains(text, "no issues found") || strings.Contains(text, "no findings") {
		return false
	}
	for _, kw := range []string{"issue", "bug", "error", "fix required", "needs change"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// parseAuditResultToken scans only the first non-empty transcript line: an
// exact (case-insensitive) "AUDIT_RESULT: PASS"/"FAIL" match decides the
// result; any other first line yields no decision (fall back to keywords).
func parseAuditResultToken(transcript []string) (pass bool, ok bool) {
	for _, line := range transcript {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch strings.ToUpper(trimmed) {
		case "AUDIT_RESULT: PASS":
			return true, true
		case "AUDIT_RESULT: FAIL":
			return false, true
		default:
			return false, false
		}
	}
	return false, false
}

// auditFeedback renders the message forwarded to the next Implementor (or
// TestWriter) pass after an Auditor run: a spawn/exit-failure note, or the
// joined transcript, or a generic nudge when the transcript is empty.
func auditFeedback(transcript []string, code int, success bool) string {
	if !success {
		return fmt.Sprintf("Audit process exited with code %d; re-run implementation and validate.", code)
	}
	merged := strings.TrimSpace(strings.Join(transcript, " "))
	if merged == "" {
		return "Audit requested fixes without detailed notes; review implementation against requirements."
	}
	return "Audit feedback: " + merged
}

// testRunnerFeedback renders the failure message forwarded to the next
// TestWriter/Implementor pass after a deterministic test run fails.
func testRunnerFeedback(transcript []string, code int) string {
	merged := strings.Join(transcript, "\n")
	if strings.TrimSpace(merged) == "" {
		return fmt.Sprintf("Deterministic test run failed with code %d and no output.", code)
	}
	return fmt.Sprintf("Deterministic test run failed with code %d. Output:\n%s", code, merged)
}
