// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/homeops/dasboot/internal/bootstrap"
	"github.com/homeops/dasboot/internal/pipeline"
)

// renderPlan prints the steps a run would execute, in execution order, and
// the catalog entries left out.
func renderPlan(w io.Writer, plan bootstrap.Plan, opts pipeline.Options) {
	fmt.Fprintln(w, TitleStyle.Render("Dry Run"))
	fmt.Fprintln(w)

	width := idWidth(plan)
	steps := plan.Steps
	for pos := range steps {
		idx := pos
		if opts.Reverse {
			idx = len(steps) - 1 - pos
		}
		step := steps[idx]
		id := CmdStyle.Render(pad(step.ID, width))
		if step.Err != nil {
			fmt.Fprintf(w, "  %2d. %s %s %v\n", pos+1, id, ErrorStyle.Render("invalid:"), step.Err)
			continue
		}
		fmt.Fprintf(w, "  %2d. %s %s\n", pos+1, id, step.Spec)
		if dir := step.Spec.Dir(); dir != "" {
			fmt.Fprintf(w, "      %s %s %s\n", pad("", width), SubtitleStyle.Render("in"), dir)
		}
		if stdout, _, _ := step.Spec.Redirects(); stdout != "" {
			fmt.Fprintf(w, "      %s %s %s\n", pad("", width), SubtitleStyle.Render(">"), stdout)
		}
	}
	if len(steps) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(no steps)"))
	}

	if len(plan.Omitted) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SubtitleStyle.Render("Omitted:"))
		for _, o := range plan.Omitted {
			fmt.Fprintf(w, "   -  %s %s\n", WarningStyle.Render(pad(o.ID, width)), o.Reason)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s stop-on-failure=%t reverse=%t step-timeout=%s\n",
		SubtitleStyle.Render("Policy:"), opts.StopOnFailure, opts.Reverse, timeoutText(opts.StepTimeout))
}

// renderResult prints one line per executed step and the aggregate verdict.
func renderResult(w io.Writer, steps []pipeline.Step, res pipeline.Result) {
	width := 0
	for _, s := range steps {
		width = max(width, len(s.ID))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Summary"))
	for _, sr := range res.Steps() {
		mark := SuccessStyle.Render("✓")
		if !sr.ExitCode.IsSuccess() {
			mark = ErrorStyle.Render("✗")
		}
		line := fmt.Sprintf("  %s %s exit %-3d %s", mark, CmdStyle.Render(pad(sr.ID, width)), int(sr.ExitCode), sr.Duration.Round(time.Millisecond))
		if sr.Outcome != pipeline.OutcomeSucceeded {
			line += " " + WarningStyle.Render(string(sr.Outcome))
		}
		if sr.Err != nil {
			line += ": " + sr.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	for _, idx := range res.Skipped() {
		fmt.Fprintf(w, "  %s %s %s\n", WarningStyle.Render("-"), CmdStyle.Render(pad(steps[idx].ID, width)), SubtitleStyle.Render("skipped"))
	}

	fmt.Fprintln(w)
	if res.Succeeded() {
		fmt.Fprintf(w, "%s all %d steps succeeded\n", SuccessStyle.Render("✓"), len(res.Steps()))
		return
	}
	fmt.Fprintf(w, "%s %d of %d steps failed, %d skipped\n",
		ErrorStyle.Render("✗"), len(res.FailedSteps()), len(steps), len(res.Skipped()))
}

func idWidth(plan bootstrap.Plan) int {
	width := 0
	for _, s := range plan.Steps {
		width = max(width, len(s.ID))
	}
	for _, o := range plan.Omitted {
		width = max(width, len(o.ID))
	}
	return width
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func timeoutText(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
