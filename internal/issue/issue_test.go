// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValuesAreOrderedAndComplete(t *testing.T) {
	ids := []Id{
		ConfigLoadFailedId,
		BaseLayerMissingId,
		SchemaViolationId,
		ShellNotFoundId,
		UnknownStepId,
		StepsFailedId,
		HostInventoryMissingId,
	}

	values := Values()
	if len(values) != len(ids) {
		t.Fatalf("Values() has %d issues, want %d", len(values), len(ids))
	}
	for i, id := range ids {
		if values[i].Id() != id {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, values[i].Id(), id)
		}
		if Get(id) == nil || Get(id).MarkdownMsg() == "" {
			t.Errorf("issue %d missing or empty", id)
		}
	}
	if Get(0) != nil {
		t.Error("Get(0) should return nil")
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	var gotStyle string
	render = func(in string, style string) (string, error) {
		gotStyle = style
		return in, nil
	}

	rendered, err := Get(HostInventoryMissingId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if gotStyle != "notty" {
		t.Errorf("style = %q", gotStyle)
	}
	if !strings.Contains(rendered, "dasboot host refresh") || !strings.Contains(rendered, "## See also\n\n- <https://systeminformation.io>") {
		t.Errorf("Render() = %q", rendered)
	}

	rendered, err = Get(ShellNotFoundId).Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("issue without links must not render a See also section")
	}
}

func TestAllIssuesRenderWithGlamour(t *testing.T) {
	for _, issue := range Values() {
		rendered, err := issue.Render("notty")
		if err != nil {
			t.Errorf("issue %d failed to render: %v", issue.Id(), err)
		}
		if strings.TrimSpace(rendered) == "" {
			t.Errorf("issue %d rendered to empty string", issue.Id())
		}
	}
}
