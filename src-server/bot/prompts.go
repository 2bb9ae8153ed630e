package bot

const (
	PROMPT_WELCOME = "Welcome to Manobal! Your access code is %s. " +
		"Please enter this code to verify your identity."
	PROMPT_WRONG_ACCESS_CODE = "Sorry, that code is incorrect. Your access code is %s. " +
		"Please enter this code to verify your identity."
	PROMPT_CONSENT = "Thank you for authenticating. I'm Manobal, your mental health companion. " +
		"I'm here to chat about how you're feeling and provide support. " +
		"To continue, please provide your consent by replying with:\n\n" +
		"'I consent to Manobal using my anonymized conversation data for mental health insights.'"
	PROMPT_CONSENT_REMINDER = "To continue using Manobal, I need your consent. Please reply with:\n\n" +
		"'I consent to Manobal using my anonymized conversation data for mental health insights.'"
	PROMPT_PROFILE = "Thank you for your consent. To provide better insights, " +
		"please share your department and location in the format:\n\n" +
		"Department: [Your Department], Location: [Your Location]\n\n" +
		"For example: 'Department: Engineering, Location: Remote'"
	PROMPT_PROFILE_FORMAT = "I couldn't detect your department and location in the correct format. " +
		"Please use the format:\n\n" +
		"Department: [Your Department], Location: [Your Location]\n\n" +
		"For example: 'Department: Engineering, Location: Remote'"
	PROMPT_PROFILE_MISSING = "Thank you. Could you please also provide your %s? " +
		"Please use the format:\n\n%s"
	PROMPT_READY = "Thank you for providing your information. Now I'm ready to chat with you! " +
		"How are you feeling today? You can also reply \"start check-in\" at any time for a quick wellbeing check-in."
	PROMPT_MESSAGE_LIMIT = "You've reached the maximum number of messages for today. " +
		"Please try again tomorrow."
	PROMPT_LLM_UNAVAILABLE = "I'm sorry, I'm experiencing some technical difficulties. Please try again later."
	PROMPT_INTERNAL_ERROR  = "I'm having trouble processing your message. Please try again later."
)
