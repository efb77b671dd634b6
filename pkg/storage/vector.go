package storage

import (
	"math"
	"strconv"
	"strings"
)

// CosineSimilarity scores a against b in [-1, 1]. Mismatched lengths and
// zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i, x := range a {
		y := b[i]
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// VectorLiteral renders v in the "[x,y,...]" text form accepted by both
// pgvector and OceanBase VECTOR columns.
func VectorLiteral(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}
