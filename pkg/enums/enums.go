// Package enums holds the string-backed enumerations persisted in Postgres
// and carried over the wire.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of valid equal to raw after normalize.
func parse[T ~string](valid []T, raw, kind string, normalize func(string) string) (T, error) {
	value := raw
	if normalize != nil {
		value = normalize(raw)
	}
	if i := slices.Index(valid, T(value)); i >= 0 {
		return valid[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
