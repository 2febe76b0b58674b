package physical

import "sort"

// Projection retains only the listed variables from each child row.
type Projection struct {
	child Operator
	vars  []string
	row   Row
}

func NewProjection(child Operator, vars []string) *Projection {
	return &Projection{child: child, vars: vars}
}

func (p *Projection) Next() bool {
	if !p.child.Next() {
		return false
	}
	in := p.child.Row()
	if p.vars == nil {
		p.row = in
		return true
	}
	out := make(Row, len(p.vars))
	for _, v := range p.vars {
		if id, ok := in[v]; ok {
			out[v] = id
		}
	}
	p.row = out
	return true
}

func (p *Projection) Row() Row     { return p.row }
func (p *Projection) Close() error { return p.child.Close() }

// Distinct emits only rows not seen before, keyed by their full variable
// assignment. Used as a building block even though ORDER-BY/DISTINCT
// belong to a surface query layer above this core — deduplication is still
// needed for subquery and union-free plan shapes.
type Distinct struct {
	child Operator
	seen  map[string]bool
	row   Row
}

func NewDistinct(child Operator) *Distinct {
	return &Distinct{child: child, seen: make(map[string]bool)}
}

func (d *Distinct) Next() bool {
	for d.child.Next() {
		row := d.child.Row()
		key := rowKey(row)
		if !d.seen[key] {
			d.seen[key] = true
			d.row = row
			return true
		}
	}
	return false
}

func (d *Distinct) Row() Row     { return d.row }
func (d *Distinct) Close() error { return d.child.Close() }

func rowKey(row Row) string {
	// Deterministic key regardless of map iteration order.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]byte, 0, 16*len(keys))
	for _, k := range keys {
		out = append(out, k...)
		out = append(out, '=')
		out = appendUint32(out, row[k])
		out = append(out, ';')
	}
	return string(out)
}

func appendUint32(buf []byte, v uint32) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [10]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}
