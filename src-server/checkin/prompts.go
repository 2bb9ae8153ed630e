package checkin

import (
	"strings"

	"manobal/src-server/model"

	"golang.org/x/text/cases"
)

const (
	PROMPT_INITIATE = "Let's start a quick check-in to see how you're doing today. " +
		"On a scale of 1-5, how would you rate your mood today? " +
		"(1 being very low, 5 being excellent)"
	PROMPT_MOOD_FOLLOWUP   = "Thank you. Could you share a few words about why you're feeling that way today?"
	PROMPT_STRESS_QUESTION = "Now, on a scale of 1-5, how would you rate your stress level today? " +
		"(1 being very relaxed, 5 being extremely stressed)"
	PROMPT_STRESS_FOLLOWUP      = "Thank you. Could you briefly mention what factors are contributing to your stress level?"
	PROMPT_QUALITATIVE_FEEDBACK = "Last question: Is there anything specific you'd like to share about your work experience or well-being lately?"
	PROMPT_COMPLETION           = "Thank you for completing today's check-in. Your responses help us understand how to better support you. " +
		"Your check-in has been recorded and if needed, appropriate support resources will be provided. " +
		"Feel free to reach out anytime you need to talk."
	PROMPT_TIMEOUT_WARNING = "Just a reminder that your check-in session will timeout in 5 minutes if there's no activity. " +
		"Would you like to continue where we left off?"
	PROMPT_TIMEOUT = "Your check-in session has timed out due to inactivity. You can start a new check-in anytime " +
		"by typing 'start check-in'."
	PROMPT_FALLBACK = "I'm not sure what to do with that response. Let's continue with your check-in."

	PROMPT_MOOD_NOT_A_NUMBER   = "I didn't understand that. Please rate your mood on a scale of 1-5."
	PROMPT_MOOD_OUT_OF_RANGE   = "Please provide a number between 1 and 5 for your mood rating."
	PROMPT_STRESS_NOT_A_NUMBER = "I didn't understand that. Please rate your stress level on a scale of 1-5."
	PROMPT_STRESS_OUT_OF_RANGE = "Please provide a number between 1 and 5 for your stress level."
)

// Reports whether the message asks to start a check-in.
func IsStartPhrase(text string) bool {
	// a Caser is stateful, so one per call
	folded := cases.Fold().String(text)
	return strings.Contains(folded, "check-in") || strings.Contains(folded, "check in")
}

// The question a session in state is waiting on an answer for.
func PromptFor(state model.CheckInState) string {
	switch state {
	case model.CHECK_IN_STATE_INITIATED:
		return PROMPT_INITIATE
	case model.CHECK_IN_STATE_MOOD_CAPTURED:
		return PROMPT_MOOD_FOLLOWUP
	case model.CHECK_IN_STATE_STRESS_CAPTURED:
		return PROMPT_STRESS_QUESTION
	case model.CHECK_IN_STATE_FEEDBACK_CAPTURED:
		return PROMPT_STRESS_FOLLOWUP
	case model.CHECK_IN_STATE_QUALITATIVE_FEEDBACK:
		return PROMPT_QUALITATIVE_FEEDBACK
	case model.CHECK_IN_STATE_COMPLETED:
		return PROMPT_COMPLETION
	}
	return PROMPT_FALLBACK
}
