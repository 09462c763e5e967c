package classifier

// Answers maps class name → question ID → the entrant's yes/no response.
// A missing entry means the question has not been answered.
type Answers map[string]map[string]bool

// Lookup returns the answer for a question and whether one was given.
func (a Answers) Lookup(class, question string) (answer bool, answered bool) {
	byQuestion, ok := a[class]
	if !ok {
		return false, false
	}
	answer, answered = byQuestion[question]
	return answer, answered
}

// Set records an answer, allocating the class entry on first use.
func (a Answers) Set(class, question string, answer bool) {
	byQuestion, ok := a[class]
	if !ok {
		byQuestion = make(map[string]bool)
		a[class] = byQuestion
	}
	byQuestion[question] = answer
}

// Len counts individual answers across all classes.
func (a Answers) Len() int {
	n := 0
	for _, byQuestion := range a {
		n += len(byQuestion)
	}
	return n
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for class, byQuestion := range a {
		cp := make(map[string]bool, len(byQuestion))
		for q, v := range byQuestion {
			cp[q] = v
		}
		out[class] = cp
	}
	return out
}
