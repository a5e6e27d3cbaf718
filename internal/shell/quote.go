// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s as a single shell word for the given kind, so that the
// shell hands it to the program verbatim. Words without special characters
// are returned unchanged and the empty string is quoted as a pair of
// single quotes.
func Quote(kind Kind, s string) (string, error) {
	q, err := syntax.Quote(s, lang(kind))
	if err != nil {
		return "", fmt.Errorf("quote %q for %s: %w", s, kind, err)
	}
	return q, nil
}

// Join quotes every element of argv and joins them with single spaces,
// producing a statement suitable for `<shell> -c`.
func Join(kind Kind, argv []string) (string, error) {
	words := make([]string, 0, len(argv))
	for _, arg := range argv {
		q, err := Quote(kind, arg)
		if err != nil {
			return "", err
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}

// Split tokenizes a statement into fields the way a POSIX shell would,
// honoring quotes and escapes. Parameter references expand to empty strings
// and no globbing is performed.
func Split(statement string) ([]string, error) {
	fields, err := shell.Fields(statement, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", statement, err)
	}
	return fields, nil
}

func lang(kind Kind) syntax.LangVariant {
	if kind == Sh {
		return syntax.LangPOSIX
	}
	return syntax.LangBash
}
