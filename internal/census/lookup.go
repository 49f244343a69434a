package census

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/area"
)

// fuzzyCutoff is the minimum similarity ratio accepted when neither an
// exact nor a substring match finds the comuna.
const fuzzyCutoff = 0.70

// LookupComunaCode resolves a comuna name to its official code against
// the comunas lookup table (columns COMUNA = code, NOM_COMUNA = name).
// Matching runs over accent-stripped uppercase names: exact first,
// then substring, then closest by similarity ratio.
func LookupComunaCode(t *Table, comuna string) (string, error) {
	target := area.Normalize(comuna)
	if target == "" {
		return "", eris.New("census: empty comuna name")
	}

	type entry struct {
		code string
		norm string
	}
	entries := make([]entry, 0, len(t.Rows))
	for _, row := range t.Rows {
		name := area.Normalize(row["NOM_COMUNA"])
		if name == "" {
			continue
		}
		entries = append(entries, entry{code: row["COMUNA"], norm: name})
	}

	for _, e := range entries {
		if e.norm == target {
			return e.code, nil
		}
	}
	for _, e := range entries {
		if strings.Contains(e.norm, target) {
			zap.L().Info("census: substring comuna match",
				zap.String("query", comuna), zap.String("matched", e.norm))
			return e.code, nil
		}
	}

	best, bestRatio := entry{}, 0.0
	for _, e := range entries {
		if r := similarity(target, e.norm); r > bestRatio {
			best, bestRatio = e, r
		}
	}
	if bestRatio >= fuzzyCutoff {
		zap.L().Warn("census: fuzzy comuna match",
			zap.String("query", comuna),
			zap.String("matched", best.norm),
			zap.Float64("ratio", bestRatio),
		)
		return best.code, nil
	}

	return "", eris.Errorf("census: no comuna code for %q", comuna)
}

// similarity is 1 - levenshtein/maxlen, the usual edit-distance ratio.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(prev[lb])/float64(maxLen)
}

func minInt(vs ...int) int {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
