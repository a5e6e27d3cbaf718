// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
)

// printableArgv is an argument vector drawn from printable ASCII, including
// every shell metacharacter and the empty string.
type printableArgv []string

func (printableArgv) Generate(r *rand.Rand, size int) reflect.Value {
	n := r.Intn(6)
	argv := make(printableArgv, n)
	for i := range argv {
		b := make([]byte, r.Intn(size+1))
		for j := range b {
			b[j] = byte(0x20 + r.Intn(0x7f-0x20))
		}
		argv[i] = string(b)
	}
	return reflect.ValueOf(argv)
}

func TestJoinSplitRoundTrip(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{Zsh, Bash, Sh} {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			property := func(argv printableArgv) bool {
				joined, err := Join(kind, argv)
				if err != nil {
					t.Logf("Join(%q) error = %v", argv, err)
					return false
				}
				got, err := Split(joined)
				if err != nil {
					t.Logf("Split(%q) error = %v", joined, err)
					return false
				}
				if len(argv) == 0 {
					return len(got) == 0
				}
				return reflect.DeepEqual([]string(argv), got)
			}
			if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestJoinExamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind Kind
		argv []string
		want []string
	}{
		{name: "plain words", kind: Bash, argv: []string{"echo", "hello"}, want: []string{"echo", "hello"}},
		{name: "embedded quote", kind: Zsh, argv: []string{"echo", "it's"}, want: []string{"echo", "it's"}},
		{name: "empty argument", kind: Sh, argv: []string{"printf", ""}, want: []string{"printf", ""}},
		{name: "command substitution is inert", kind: Bash, argv: []string{"echo", "$(rm -rf /)"}, want: []string{"echo", "$(rm -rf /)"}},
		{name: "tab uses ansi-c quoting", kind: Bash, argv: []string{"a\tb"}, want: []string{"a\tb"}},
		{name: "glob characters", kind: Sh, argv: []string{"ls", "*.go", "[ab]"}, want: []string{"ls", "*.go", "[ab]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			joined, err := Join(tt.kind, tt.argv)
			if err != nil {
				t.Fatalf("Join() error = %v", err)
			}
			got, err := Split(joined)
			if err != nil {
				t.Fatalf("Split(%q) error = %v", joined, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("round trip of %q mismatch (-want +got):\n%s", joined, diff)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	if got, _ := Quote(Bash, "plain"); got != "plain" {
		t.Errorf("Quote(plain) = %q, want unchanged", got)
	}
	if got, _ := Quote(Sh, ""); got != "''" {
		t.Errorf("Quote(empty) = %q, want ''", got)
	}
	if got, _ := Quote(Sh, "a b"); got != "'a b'" {
		t.Errorf("Quote(a b) = %q", got)
	}
	if _, err := Quote(Bash, "nul\x00byte"); err == nil {
		t.Error("Quote() with NUL byte succeeded, want error")
	}
	if _, err := Quote(Sh, "tab\there"); err == nil {
		t.Error("Quote(Sh) with control character succeeded, want error")
	}
}
