package ingest

// SeedSources is the baseline customer service corpus used when the store
// is empty and no external document file is supplied.
func SeedSources() []Source {
	texts := []string{
		"Nexobotics helps businesses improve customer service with AI.",
		"Customer satisfaction is critical for business success.",
		"AI chatbots can handle routine customer inquiries efficiently.",
		"Respond to customer complaints within 24 hours to maintain trust.",
		"Escalate billing disputes to a human agent when the customer asks twice.",
		"Personalized responses increase customer retention and loyalty.",
	}

	sources := make([]Source, len(texts))
	for i, text := range texts {
		sources[i] = Source{
			Text:     text,
			Metadata: map[string]string{"source": "seed"},
		}
	}
	return sources
}
