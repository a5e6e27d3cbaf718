// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a guide.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	BaseLayerMissingId
	SchemaViolationId
	ShellNotFoundId
	UnknownStepId
	StepsFailedId
	HostInventoryMissingId
)

type (
	// MarkdownMsg is the Markdown body of a guide.
	MarkdownMsg string

	// HttpLink is an external reference shown under "See also".
	HttpLink string

	// Issue is a remediation guide for a well-known failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) ExtLinks() []HttpLink { return slices.Clone(i.extLinks) }

// Render renders the guide for the terminal with the given glamour style
// ("dark", "light", "notty", or a path to a JSON style).
func (i *Issue) Render(style string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), style)
}

var (
	render = glamour.Render

	issues = map[Id]*Issue{
		ConfigLoadFailedId: {
			id: ConfigLoadFailedId,
			mdMsg: `
# The configuration could not be loaded

One of the layer files failed to parse.

## Things you can try:
- Check the file named in the error for TOML or YAML syntax errors
- Show which layer each key comes from:
~~~
$ dasboot config show
~~~`,
			extLinks: []HttpLink{"https://toml.io/en/v1.0.0"},
		},
		BaseLayerMissingId: {
			id: BaseLayerMissingId,
			mdMsg: `
# No base configuration found

dasboot reads its defaults from ` + "`default.toml`" + ` in the app config directory.

## Things you can try:
- Write the default base layer:
~~~
$ dasboot config init
~~~
- Point dasboot at another directory with ` + "`--config-dir`" + ` or ` + "`DASBOOT_CONFIG_DIR`",
		},
		SchemaViolationId: {
			id: SchemaViolationId,
			mdMsg: `
# The merged configuration is invalid

A value has the wrong type, or a command is missing its ` + "`cmd`" + `.

## Things you can try:
- Fix the key named in the error in whichever layer sets it:
~~~
$ dasboot config get <key>
~~~`,
		},
		ShellNotFoundId: {
			id: ShellNotFoundId,
			mdMsg: `
# Your shell could not be resolved

Steps that run through your shell need ` + "`$SHELL`" + ` to name zsh, bash or sh.

## Things you can try:
- Check the variable: ` + "`echo $SHELL`" + `
- Run a command without a shell by setting ` + "`shell = \"none\"`" + ` in its table`,
		},
		UnknownStepId: {
			id: UnknownStepId,
			mdMsg: `
# Unknown bootstrap step

Steps are host-info, brew-install, apt-update, apt-install, brew-packages,
keepassxc, chezmoi-init, chezmoi-apply and commands.<name>. The groups apt,
chezmoi and commands expand to several steps.

## Things you can try:
- Preview the plan:
~~~
$ dasboot run --dry-run
~~~`,
		},
		StepsFailedId: {
			id: StepsFailedId,
			mdMsg: `
# One or more steps failed

Every step ran unless ` + "`--stop-on-failure`" + ` was given. The summary lists each
step with its exit code.

## Things you can try:
- Re-run only the failed steps with ` + "`--only <step>`" + `
- Give slow steps more time with ` + "`--step-timeout`",
		},
		HostInventoryMissingId: {
			id: HostInventoryMissingId,
			mdMsg: `
# No host inventory yet

` + "`host.json`" + ` is written by the host-info step.

## Things you can try:
~~~
$ dasboot host refresh
~~~`,
			extLinks: []HttpLink{"https://systeminformation.io"},
		},
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, id := range slices.Sorted(maps.Keys(issues)) {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
