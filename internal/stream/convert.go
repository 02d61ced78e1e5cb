package stream

// ConvertReader returns a Reader producing the values of base converted by
// conv. Conversion errors are returned by Read after the values converted so
// far.
func ConvertReader[To, From any](base Reader[From], conv func(From) (To, error)) Reader[To] {
	return &convertReader[To, From]{base: base, conv: conv}
}

type convertReader[To, From any] struct {
	base Reader[From]
	from []From
	conv func(From) (To, error)
}

func (r *convertReader[To, From]) Read(values []To) (n int, err error) {
	for n < len(values) {
		if i := len(values) - n; i <= cap(r.from) {
			r.from = r.from[:i]
		} else {
			r.from = make([]From, i)
		}

		rn, err := r.base.Read(r.from)

		for _, from := range r.from[:rn] {
			to, err := r.conv(from)
			if err != nil {
				return n, err
			}
			values[n] = to
			n++
		}

		if err != nil {
			return n, err
		}
		if rn == 0 {
			break
		}
	}
	return n, nil
}
