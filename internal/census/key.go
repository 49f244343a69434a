// Package census joins INE microdata onto census block (manzana)
// geometries and resolves the shared key between both schemas.
package census

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// keyAliases are the column names the INE products have used for the
// manzana identifier across census vintages, in preference order.
var keyAliases = []string{"MANZENT", "ID_MANZENT", "MZ_ENT", "MANZANA", "ID_MANZENT_15R"}

// ErrKeyUnresolved means neither the explicit key nor any known alias
// exists in both schemas. The join refuses to guess a key from
// arbitrary shared columns; a wrong silent guess corrupts every
// downstream metric.
var ErrKeyUnresolved = errors.New("census: join key unresolved")

// KeyMatch carries the per-side column names that resolved, which may
// differ in case between the two inputs.
type KeyMatch struct {
	GeomColumn string
	CSVColumn  string
}

// ResolveKey picks the join key. An explicit key (the --censo-key
// flag) is honored first and must exist on both sides; otherwise the
// alias list is probed in order. Matching is case-insensitive over
// trimmed column names.
func ResolveKey(explicit string, geomCols, csvCols []string) (KeyMatch, error) {
	find := func(cols []string, name string) (string, bool) {
		for _, c := range cols {
			if strings.EqualFold(strings.TrimSpace(c), name) {
				return c, true
			}
		}
		return "", false
	}

	if explicit != "" {
		g, gok := find(geomCols, strings.TrimSpace(explicit))
		c, cok := find(csvCols, strings.TrimSpace(explicit))
		if !gok || !cok {
			return KeyMatch{}, eris.Wrapf(ErrKeyUnresolved,
				"census: explicit key %q not present on both sides", explicit)
		}
		return KeyMatch{GeomColumn: g, CSVColumn: c}, nil
	}

	for _, alias := range keyAliases {
		g, gok := find(geomCols, alias)
		c, cok := find(csvCols, alias)
		if gok && cok {
			return KeyMatch{GeomColumn: g, CSVColumn: c}, nil
		}
	}

	return KeyMatch{}, eris.Wrapf(ErrKeyUnresolved,
		"census: no alias of %s present on both sides, pass --censo-key",
		strings.Join(keyAliases, "/"))
}
