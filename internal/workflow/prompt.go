package workflow

import (
	"fmt"
	"strings"
)

// RenderPrompt builds the prompt string for one job, or "" for jobs that
// carry no agent prompt (TestRunner, ImplementorTestRunner: spec.md 4.5
// dispatches those as DeterministicTestRun instead). The Orchestrator
// treats the result as opaque.
func (m *Machine) RenderPrompt(job Job) string {
	switch job.Kind {
	case KindImplementor:
		return m.renderImplementorPrompt(job)
	case KindAuditor:
		return m.renderAuditorPrompt(job)
	case KindTestWriterAuditor:
		return m.renderTestWriterAuditorPrompt(job)
	case KindTestWriter:
		return m.renderTestWriterPrompt(job)
	case KindFinalAudit:
		return m.renderFinalAuditPrompt(job)
	default:
		return ""
	}
}

func (m *Machine) contextBlock() string {
	if len(m.rollingContext) == 0 {
		return "(no context yet)"
	}
	var b strings.Builder
	for _, entry := range m.rollingContext {
		b.WriteString("- ")
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Machine) nodeTitle(id uint64, fallback string) string {
	if n := m.graph.Find(id); n != nil {
		return n.DisplayTitle()
	}
	return fallback
}

func (m *Machine) nodeDetails(id uint64) string {
	if n := m.graph.Find(id); n != nil {
		return n.DisplayDetails()
	}
	return "(no details provided)"
}

func (m *Machine) renderImplementorPrompt(job Job) string {
	feedback := job.Implementor.Feedback
	if strings.TrimSpace(feedback) == "" {
		feedback = "No audit feedback yet; implement from task prompt."
	} else {
		feedback = "Audit feedback to address:\n" + feedback
	}
	prompt := fmt.Sprintf(
		"You are an implementation sub-agent.\n"+
			"Top-level task: %s\n"+
			"Implementation subtask: %s\n"+
			"Implementation details:\n%s\n"+
			"Rolling task context:\n%s\n"+
			"%s\n"+
			"Guardrail: do not create or modify tests unless this task explicitly includes a direct implementor test_runner flow reporting failing existing tests.\n"+
			"End your response with a structured changed-files summary block using this exact format:\n"+
			"FILES_CHANGED_BEGIN\n"+
			"- path/to/file.ext: brief description of what changed\n"+
			"FILES_CHANGED_END\n"+
			"Include every file you changed. If no files changed, include a single bullet with reason.\n"+
			"Provide concise progress updates and finish with what changed.",
		m.taskTitle(job.TopTaskID),
		m.nodeTitle(job.Implementor.ImplementorID, "Implementation"),
		m.nodeDetails(job.Implementor.ImplementorID),
		m.contextBlock(),
		feedback,
	)
	return m.prependTaskDocs(job.Implementor.ImplementorID, prompt)
}

func (m *Machine) renderAuditorPrompt(job Job) string {
	changedFiles := job.Auditor.ChangedFilesSummary
	if strings.TrimSpace(changedFiles) == "" {
		changedFiles = "(implementor did not provide a changed-files summary)"
	}
	report := job.Auditor.ImplementationReport
	if strings.TrimSpace(report) == "" {
		report = "(no implementation output captured)"
	}
	prompt := fmt.Sprintf(
		"You are an audit sub-agent reviewing implementation output.\n"+
			"Top-level task: %s\n"+
			"Parent implementor task: %s\n"+
			"Parent implementor details:\n%s\n"+
			"Audit subtask details:\n%s\n"+
			"Audit pass: %d of %d\n"+
			"Rolling task context:\n%s\n"+
			"Implementor changed-files summary:\n%s\n"+
			"Implementation output to audit:\n%s\n"+
			"Guardrail: do not audit test quality/coverage or request test changes; limit findings to implementation concerns only.\n"+
			"Scope lock (required): audit only the parent implementor task/details above. Do not audit unrelated tasks, broader roadmap items, or unrelated files.\n"+
			"Execution guardrail: do not run tests and do not execute/check shell commands. Command/test execution is handled by a subsequent dedicated agent.\n"+
			"Strictness policy for this audit pass:\n%s\n"+
			"Response protocol (required):\n"+
			"- First line must be exactly one of:\n"+
			"  AUDIT_RESULT: PASS\n"+
			"  AUDIT_RESULT: FAIL\n"+
			"- Then provide concise findings. If PASS, include a brief rationale.\n"+
			"- If FAIL, include concrete issues and suggested fixes. On pass 4, only FAIL for truly critical blockers that would prevent the broader plan from running.",
		m.taskTitle(job.TopTaskID),
		m.nodeTitle(job.Auditor.ImplementorID, "Implementation"),
		m.nodeDetails(job.Auditor.ImplementorID),
		m.nodeDetails(job.Auditor.AuditorID),
		job.Auditor.Pass, maxAuditRetries,
		m.contextBlock(),
		changedFiles,
		report,
		auditStrictnessPolicy(job.Auditor.Pass),
	)
	return m.prependTaskDocs(job.Auditor.AuditorID, prompt)
}

func (m *Machine) renderTestWriterAuditorPrompt(job Job) string {
	report := job.TestWriterAuditor.TestReport
	if strings.TrimSpace(report) == "" {
		report = "(no test-writer output captured)"
	}
	prompt := fmt.Sprintf(
		"You are an audit sub-agent reviewing test-writing output.\n"+
			"Top-level task: %s\n"+
			"Parent test-writer task: %s\n"+
			"Parent test-writer details:\n%s\n"+
			"Audit subtask details:\n%s\n"+
			"Audit pass: %d of %d\n"+
			"Rolling task context:\n%s\n"+
			"Test-writer output to audit:\n%s\n"+
			"Focus on test quality, coverage relevance, and whether tests clearly validate intended behavior.\n"+
			"Execution guardrail: do not run tests and do not execute/check shell commands. Command/test execution is handled by a subsequent dedicated agent.\n"+
			"Strictness policy for this audit pass:\n%s\n"+
			"Response protocol (required):\n"+
			"- First line must be exactly one of:\n"+
			"  AUDIT_RESULT: PASS\n"+
			"  AUDIT_RESULT: FAIL\n"+
			"- Then provide concise findings. If PASS, include a brief rationale.\n"+
			"- If FAIL, include concrete issues and suggested fixes. On pass 4, only FAIL for truly critical blockers that would prevent the broader plan from running.",
		m.taskTitle(job.TopTaskID),
		m.nodeTitle(job.TestWriterAuditor.TestWriterID, "Test Writing"),
		m.nodeDetails(job.TestWriterAuditor.TestWriterID),
		m.nodeDetails(job.TestWriterAuditor.AuditorID),
		job.TestWriterAuditor.Pass, maxAuditRetries,
		m.contextBlock(),
		report,
		auditStrictnessPolicy(job.TestWriterAuditor.Pass),
	)
	return m.prependTaskDocs(job.TestWriterAuditor.AuditorID, prompt)
}

func (m *Machine) renderTestWriterPrompt(job Job) string {
	feedback := job.TestWriter.Feedback
	if strings.TrimSpace(feedback) == "" {
		feedback = "No test feedback yet; infer tests from task and implementation branch progress."
	} else {
		feedback = "Feedback to address before re-running deterministic tests:\n" + feedback
	}
	special := ""
	if job.TestWriter.SkipTestRunnerOnSuccess {
		special = "Special instruction: this is a cleanup pass after exhausted deterministic test retries. Remove failing tests and do not add replacements."
	}
	prompt := fmt.Sprintf(
		"You are a test-writer sub-agent.\n"+
			"Top-level task: %s\n"+
			"Test-writer subtask: %s\n"+
			"Test-writing details:\n%s\n"+
			"Rolling task context:\n%s\n"+
			"%s\n"+
			"Write or update tests to cover current implementation thoroughly.\n"+
			"%s\n"+
			"Keep output concise and include what test behavior was added.",
		m.taskTitle(job.TopTaskID),
		m.nodeTitle(job.TestWriter.TestWriterID, "Test Writing"),
		m.nodeDetails(job.TestWriter.TestWriterID),
		m.contextBlock(),
		feedback,
		special,
	)
	return m.prependTaskDocs(job.TestWriter.TestWriterID, prompt)
}

func (m *Machine) renderFinalAuditPrompt(job Job) string {
	feedback := job.FinalAudit.Feedback
	if strings.TrimSpace(feedback) == "" {
		feedback = "No prior final-audit feedback."
	} else {
		feedback = "Previous final-audit feedback to address:\n" + feedback
	}
	prompt := fmt.Sprintf(
		"You are a final audit sub-agent.\n"+
			"Perform a holistic audit across all completed tasks and their outcomes.\n"+
			"Focus on cross-task correctness, missing edge cases, integration risk, and overall quality gaps.\n"+
			"Rolling task context:\n%s\n"+
			"Current task tree:\n%s\n"+
			"%s\n"+
			"If no issues, explicitly say 'No issues found'. Otherwise list concrete issues and fixes.",
		m.contextBlock(),
		m.taskTreeCompact(),
		feedback,
	)
	return m.prependTaskDocs(job.FinalAudit.FinalAuditID, prompt)
}

// prependTaskDocs prefixes the prompt with any docs attached to the task,
// formatted per spec.md 6.1's docs entries (title/url/summary).
func (m *Machine) prependTaskDocs(taskID uint64, prompt string) string {
	prefix := m.taskDocsPrefix(taskID)
	if prefix == "" {
		return prompt
	}
	return prefix + prompt
}

func (m *Machine) taskDocsPrefix(taskID uint64) string {
	node := m.graph.Find(taskID)
	if node == nil || len(node.Docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reference documentation for this task:\n")
	for idx, doc := range node.Docs {
		fmt.Fprintf(&b, "%d. %s\n", idx+1, strings.TrimSpace(doc.Title))
		fmt.Fprintf(&b, "   URL: %s\n", strings.TrimSpace(doc.URL))
		if strings.TrimSpace(doc.Summary) != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", strings.TrimSpace(doc.Summary))
		}
	}
	b.WriteString("If a documented URL is relevant, read it before proceeding.\n\n")
	return b.String()
}

// taskTreeCompact renders a flat, human-readable summary of every root
// task and its status, used only inside the FinalAudit prompt.
func (m *Machine) taskTreeCompact() string {
	roots := m.graph.OrderedRoots()
	if len(roots) == 0 {
		return "(no tasks queued)"
	}
	var lines []string
	for _, root := range roots {
		lines = append(lines, fmt.Sprintf("- %s [%s]", root.DisplayTitle(), root.Status))
		for _, child := range root.Children {
			lines = append(lines, fmt.Sprintf("  - %s [%s]", child.DisplayTitle(), child.Status))
		}
	}
	return strings.Join(lines, "\n")
}
