package story

// LanguageState is the effective state of a (story, code) language. There is
// no state column: an absent language is simply a missing row.
type LanguageState int

const (
	LanguageAbsent LanguageState = iota
	LanguageWithContent
)

func (s LanguageState) String() string {
	switch s {
	case LanguageAbsent:
		return "absent"
	case LanguageWithContent:
		return "with-content"
	default:
		return "unknown"
	}
}

// languageAction is what the store must do to a language row after its
// content count changes.
type languageAction int

const (
	keepLanguage languageAction = iota
	createLanguage
	dropLanguage
)

// languageStateFor maps a content count to the state it implies.
func languageStateFor(contents int) LanguageState {
	if contents > 0 {
		return LanguageWithContent
	}
	return LanguageAbsent
}

// languageTransition is the guarded transition between the current state of a
// language and the state implied by its content count after a mutation.
//
//	absent       + contents>0  -> create
//	with-content + contents==0 -> drop
//	otherwise                  -> keep
func languageTransition(current LanguageState, contentsAfter int) languageAction {
	next := languageStateFor(contentsAfter)
	switch {
	case current == LanguageAbsent && next == LanguageWithContent:
		return createLanguage
	case current == LanguageWithContent && next == LanguageAbsent:
		return dropLanguage
	default:
		return keepLanguage
	}
}
