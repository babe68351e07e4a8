package sections

// openState is the grouping state machine: either no section is open, or
// body lines are being buffered for one slug.
type openState interface {
	isOpenState()
}

type noOpenSection struct{}

type accumulatingSection struct {
	slug string
	buf  []string
}

func (noOpenSection) isOpenState()       {}
func (accumulatingSection) isOpenState() {}

// foldState is threaded through Fold by value. done is owned by the fold
// and never escapes until the stream ends.
type foldState struct {
	open openState
	done *Set
}

// step consumes one token and returns the next state.
func step(st foldState, tok Token) foldState {
	switch tok.Kind {
	case Heading:
		st = flush(st)
		st.done.open(tok.Title, tok.Slug)
		return foldState{open: accumulatingSection{slug: tok.Slug}, done: st.done}

	default:
		acc, ok := st.open.(accumulatingSection)
		if !ok {
			// Content before the first heading has no owning section.
			return st
		}
		acc.buf = append(acc.buf, tok.Text)
		return foldState{open: acc, done: st.done}
	}
}

// flush moves the open section's buffer into its accumulated body.
func flush(st foldState) foldState {
	if acc, ok := st.open.(accumulatingSection); ok {
		st.done.appendLines(acc.slug, acc.buf)
	}
	return foldState{open: noOpenSection{}, done: st.done}
}

// Fold groups a token stream into sections. Headings that share a slug
// continue the existing section. The result is unfiltered; see NonEmpty.
func Fold(tokens []Token) *Set {
	st := foldState{open: noOpenSection{}, done: NewSet()}
	for _, tok := range tokens {
		st = step(st, tok)
	}
	return flush(st).done
}
