package runtime

// c3Merge linearizes the given sequences: repeatedly take the first head
// that appears in no other sequence's tail. Returns false when no
// consistent order exists.
func c3Merge(seqs [][]*Class) ([]*Class, bool) {
	var out []*Class
	work := make([][]*Class, 0, len(seqs))
	for _, s := range seqs {
		if len(s) > 0 {
			work = append(work, s)
		}
	}
	for len(work) > 0 {
		var head *Class
		for _, s := range work {
			cand := s[0]
			inTail := false
			for _, other := range work {
				for _, c := range other[1:] {
					if c == cand {
						inTail = true
						break
					}
				}
				if inTail {
					break
				}
			}
			if !inTail {
				head = cand
				break
			}
		}
		if head == nil {
			return nil, false
		}
		out = append(out, head)
		next := work[:0]
		for _, s := range work {
			if s[0] == head {
				s = s[1:]
			}
			if len(s) > 0 {
				next = append(next, s)
			}
		}
		work = next
	}
	return out, true
}

// computeMRO builds the C3 linearization for a class whose Bases are
// already resolved: the class itself, then the merge of every base's MRO
// with the base list.
func computeMRO(cls *Class) ([]*Class, bool) {
	seqs := make([][]*Class, 0, len(cls.Bases)+1)
	for _, b := range cls.Bases {
		mro := make([]*Class, len(b.MRO))
		copy(mro, b.MRO)
		seqs = append(seqs, mro)
	}
	bases := make([]*Class, len(cls.Bases))
	copy(bases, cls.Bases)
	seqs = append(seqs, bases)

	merged, ok := c3Merge(seqs)
	if !ok {
		return nil, false
	}
	return append([]*Class{cls}, merged...), true
}
