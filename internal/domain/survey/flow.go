package survey

// Terminate is the jump target that ends the flow.
const Terminate = -1

// Branch is the jump taken after answering one question. Negative applies
// when option 0 was chosen, Otherwise for every other option.
type Branch struct {
	Negative  int
	Otherwise int
}

// SkipTable maps a question index to its branch. Questions without an entry
// continue sequentially and the last question always terminates.
type SkipTable map[int]Branch

// CRAFFTSkips is the branching of the risk screening survey: "never used"
// on the first question ends the survey, and "never in this category" on the
// second jumps straight to the CRAFFT part B questions at index 5.
//
// The table is bound to that question layout. A survey with a different
// layout needs its own table.
var CRAFFTSkips = SkipTable{
	0: {Negative: Terminate, Otherwise: 1},
	1: {Negative: 5, Otherwise: 2},
}

// next returns the index following index when option was chosen, or
// Terminate. Targets past the last question terminate.
func (t SkipTable) next(index, option, count int) int {
	if index >= count-1 {
		return Terminate
	}
	target := index + 1
	if b, ok := t[index]; ok {
		if option == 0 {
			target = b.Negative
		} else {
			target = b.Otherwise
		}
	}
	if target >= count {
		return Terminate
	}
	return target
}

// previous mirrors next: it finds the question whose recorded answer jumped
// to index, falling back to index-1.
func (t SkipTable) previous(index int, answers AnswerSet) int {
	for from, b := range t {
		if from >= index {
			continue
		}
		opt, ok := answers[from]
		if !ok {
			continue
		}
		if (opt == 0 && b.Negative == index) || (opt != 0 && b.Otherwise == index) {
			return from
		}
	}
	return index - 1
}

// State is the serializable part of a flow.
type State struct {
	Current    int       `json:"currentQuestionIndex"`
	Answers    AnswerSet `json:"answers"`
	Selected   *int      `json:"selectedOption,omitempty"`
	Terminated bool      `json:"terminated"`
}

// Flow drives one respondent through a survey. It is not safe for
// concurrent use; each session owns its own Flow.
type Flow struct {
	survey *Survey
	skips  SkipTable
	state  State
}

func NewFlow(s *Survey, skips SkipTable) *Flow {
	return &Flow{survey: s, skips: skips, state: State{Answers: AnswerSet{}}}
}

// ResumeFlow rebuilds a flow from a previously saved state.
func ResumeFlow(s *Survey, skips SkipTable, st State) *Flow {
	st = st.copy()
	return &Flow{survey: s, skips: skips, state: st}
}

func (st State) copy() State {
	out := st
	out.Answers = st.Answers.clone()
	if st.Selected != nil {
		sel := *st.Selected
		out.Selected = &sel
	}
	return out
}

// State returns a copy of the flow state.
func (f *Flow) State() State {
	return f.state.copy()
}

// CurrentQuestion returns the question on screen, or nil once terminated.
func (f *Flow) CurrentQuestion() *Question {
	if f.state.Terminated || f.state.Current >= len(f.survey.Questions) {
		return nil
	}
	return &f.survey.Questions[f.state.Current]
}

func (f *Flow) Terminated() bool { return f.state.Terminated }

// SelectOption records a transient choice for the current question.
// Indices outside the current question's options are ignored.
func (f *Flow) SelectOption(optionIndex int) {
	q := f.CurrentQuestion()
	if q == nil || optionIndex < 0 || optionIndex >= len(q.Options) {
		return
	}
	f.state.Selected = &optionIndex
}

// Advance commits the transient selection and moves along the skip table.
// It reports false and changes nothing when no option is selected.
func (f *Flow) Advance() bool {
	if f.state.Terminated || f.state.Selected == nil {
		return false
	}
	cur := f.state.Current
	opt := *f.state.Selected
	f.state.Answers[cur] = opt
	f.state.Selected = nil

	next := f.skips.next(cur, opt, len(f.survey.Questions))
	if next == Terminate {
		for qi := range f.state.Answers {
			if qi > cur {
				delete(f.state.Answers, qi)
			}
		}
		f.state.Terminated = true
		return true
	}
	// Answers left over from an earlier path through skipped questions
	// must not count towards the score.
	for qi := cur + 1; qi < next; qi++ {
		delete(f.state.Answers, qi)
	}
	f.state.Current = next
	return true
}

// GoBack moves to the question that led to the current one and restores its
// recorded answer as the selection. It is a no-op on the first question and
// after termination.
func (f *Flow) GoBack() bool {
	if f.state.Terminated || f.state.Current <= 0 {
		return false
	}
	prev := f.skips.previous(f.state.Current, f.state.Answers)
	f.state.Current = prev
	if opt, ok := f.state.Answers[prev]; ok {
		f.state.Selected = &opt
	} else {
		f.state.Selected = nil
	}
	return true
}

// ComputeResult scores the committed answers of a terminated flow.
func (f *Flow) ComputeResult() (Result, error) {
	if !f.state.Terminated {
		return Result{}, ErrNotTerminated
	}
	return Evaluate(f.survey, f.state.Answers), nil
}

// Restart clears all progress.
func (f *Flow) Restart() {
	f.state = State{Answers: AnswerSet{}}
}
