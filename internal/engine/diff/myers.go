package diff

type editKind uint8

const (
	editEqual editKind = iota
	editDelete
	editInsert
)

// edit is one step of a shortest edit script. old and new are positions in a and b; only the one
// relevant to the kind is meaningful for deletes and inserts.
type edit struct {
	kind     editKind
	old, new int
}

// myers returns a shortest edit script turning a into b, in forward order.
func myers[K comparable](a, b []K) []edit {
	n, m := len(a), len(b)
	max := n + m
	off := max + 1
	v := make([]int, 2*max+3)
	var trace [][]int

	for d := 0; d <= max; d++ {
		trace = append(trace, append([]int(nil), v...))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[off+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m, off)
			}
		}
	}
	return nil
}

func backtrack(trace [][]int, n, m, off int) []edit {
	var out []edit
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[off+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			out = append(out, edit{kind: editEqual, old: x, new: y})
		}
		if d == 0 {
			break
		}
		if x == prevX {
			out = append(out, edit{kind: editInsert, old: x, new: prevY})
		} else {
			out = append(out, edit{kind: editDelete, old: prevX, new: y})
		}
		x, y = prevX, prevY
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
