// Package prompt builds the system instruction and user message for each
// tutoring intent. Everything here is pure: no I/O and no clock.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"litcode/internal/problem"
)

// Intent selects the prompt template.
type Intent int

const (
	Chat Intent = iota + 1
	ComplexityAnalysis
	FollowUpChallenge
)

func (i Intent) String() string {
	switch i {
	case Chat:
		return "chat"
	case ComplexityAnalysis:
		return "complexity"
	case FollowUpChallenge:
		return "followup"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// ErrUnknownIntent is returned by Build for an intent outside the three
// declared constants.
var ErrUnknownIntent = errors.New("unknown prompt intent")

// Prompt is the backend-neutral pair handed to the router.
type Prompt struct {
	System string
	User   string
}

// Build renders the prompt for intent. question is only used by Chat, where
// it becomes the user message verbatim. Empty snapshot fields are replaced
// by placeholder text.
func Build(intent Intent, snap problem.Snapshot, question string) (Prompt, error) {
	snap = problem.Normalize(snap)

	switch intent {
	case Chat:
		return Prompt{System: chatSystem(snap), User: question}, nil
	case ComplexityAnalysis:
		return Prompt{System: complexitySystem, User: "**CODE TO ANALYZE:**\n" + snap.Code}, nil
	case FollowUpChallenge:
		return Prompt{System: followUpSystem, User: followUpUser(snap)}, nil
	default:
		return Prompt{}, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}
}

const complexitySystem = `Analyze the complexity of this code.
**STRICT OUTPUT FORMAT:**

**Time Complexity:** O(...)
**Space Complexity:** O(...)

**Explanation:**
(Short, simple explanation of WHY. Mention loops or structures used.)`

const followUpSystem = `You are a Senior Technical Interviewer.

**YOUR GOAL:** Provide a single, short "Follow-Up" question based on this strict priority list:

**PRIORITY 1 (Optimization):** Analyze their code complexity. If it is NOT the optimal Big-O for this specific problem, ask them to optimize it.
(Example: "Your solution is O(N^2). Can you solve this in O(N)?")

**PRIORITY 2 (Constraint Twist):**
If the code IS optimal, propose a modification to the problem constraints.
(Example: "Good. Now, what if the input array was sorted?" or "What if you were not allowed to use extra space?")

**PRIORITY 3 (Next Challenge):**
If the code is perfect and no interesting twists exist, suggest a related LeetCode problem.
(Example: "Great job. You should try '3Sum' next.")

**CONSTRAINT:** Keep your response to 1-2 sentences maximum.`

const chatRules = `You are a wise Socratic Mentor. You discuss **Computer Science Ideologies**, not code.

**YOUR RULES:**
1. **Be Concise:** Your replies must be SHORT (1-2 sentences maximum).
2. **Be Conceptual:** Do NOT use specific coding terms like "for loop", "if statement", "dictionary", or "int". Instead use terms like "iteration", "conditional logic", "key-value pairing", or "numerical value".
3. **Wait for the User:** Do not explain the whole solution. Give one conceptual nudge and wait.
4. **Elaborate Only When Asked:** If the user says "explain" or "I don't get it", ONLY THEN can you be slightly more specific, but still avoid writing code.`

func chatSystem(snap problem.Snapshot) string {
	var b strings.Builder
	b.WriteString(chatRules)
	b.WriteString("\n\n**CONTEXT:**\n")
	b.WriteString("- Problem: " + snap.Title + "\n")
	b.WriteString("- User Code: " + snap.Code)
	return b.String()
}

func followUpUser(snap problem.Snapshot) string {
	return fmt.Sprintf("The user has written code for: \"%s\".\n\n**USER'S CODE:**\n%s", snap.Title, snap.Code)
}
