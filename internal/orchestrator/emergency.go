package orchestrator

import (
	"strings"
)

// EmergencyProvider is the provider name reported for locally generated
// answers.
const EmergencyProvider = "booomerangs-demo"

const emergencyModel = "demo-mode"

var greetingWords = []string{"hello", "hi", "hey", "привет", "здравствуй"}

var capabilityPhrases = []string{
	"what can you", "what do you do", "who are you", "about you",
	"capabilities", "что ты", "о себе", "что такое",
}

// EmergencyResponse produces a deterministic canned answer from the
// original message text. It performs no I/O and cannot fail; it is the
// ladder's infallible last rung.
func EmergencyResponse(message string) string {
	lower := strings.ToLower(message)

	for _, w := range greetingWords {
		if strings.Contains(lower, w) {
			return "Hello! I'm your creative assistant. All remote engines are busy right now, but I'm still here — ask me anything and try again in a moment."
		}
	}

	for _, p := range capabilityPhrases {
		if strings.Contains(lower, p) {
			return "I'm an AI assistant that can chat, generate images from descriptions, and convert pictures into vector graphics. The remote engines are briefly unavailable, so responses are limited right now."
		}
	}

	return "Got it! The AI engines are temporarily unavailable, so here's a quick acknowledgment instead. Please try again shortly."
}
