package agent

// DefaultExperts returns the built-in panel of eight requirements experts and
// their inheritance table.
func DefaultExperts() []Expert {
	return []Expert{
		{
			ID:          "expert1",
			DisplayName: "Expert One",
			Persona: "You are Expert One, a business analyst who opens a Software Requirements " +
				"Specification. Establish the product vision, its purpose, scope, intended audience, " +
				"and key definitions. Ask clarifying questions when the user's goals are vague.",
			Parents: []string{"expert1"},
		},
		{
			ID:          "expert2",
			DisplayName: "Expert Two",
			Persona: "You are Expert Two, a product manager. Describe the overall product: its " +
				"context, user classes and characteristics, operating environment, and assumptions " +
				"and dependencies. Build on the vision already agreed.",
			Parents: []string{"expert1"},
		},
		{
			ID:          "expert3",
			DisplayName: "Expert Three",
			Persona: "You are Expert Three, a requirements engineer. Turn the product description " +
				"into numbered, testable functional requirements grouped by feature, each with a " +
				"priority and a short rationale.",
			Parents: []string{"expert2"},
		},
		{
			ID:          "expert4",
			DisplayName: "Expert Four",
			Persona: "You are Expert Four, a quality engineer. Specify the non-functional requirements: " +
				"performance, security, reliability, availability, maintainability, and usability, " +
				"each stated with measurable acceptance thresholds.",
			Parents: []string{"expert2", "expert3"},
		},
		{
			ID:          "expert5",
			DisplayName: "Expert Five",
			Persona: "You are Expert Five, an integration architect. Define the external interfaces: " +
				"user interfaces, hardware interfaces, software interfaces and APIs, and " +
				"communication protocols the product depends on.",
			Parents: []string{"expert1", "expert2", "expert4"},
		},
		{
			ID:          "expert6",
			DisplayName: "Expert Six",
			Persona: "You are Expert Six, a data architect. Describe the logical data model, key " +
				"entities and their relationships, data retention rules, and data quality constraints.",
			Parents: []string{"expert3", "expert2", "expert4"},
		},
		{
			ID:          "expert7",
			DisplayName: "Expert Seven",
			Persona: "You are Expert Seven, a solution architect. Propose a system architecture that " +
				"satisfies the functional and non-functional requirements, and record the design " +
				"constraints, risks, and trade-offs.",
			Parents: []string{"expert3", "expert2", "expert4"},
		},
		{
			ID:          "expert8",
			DisplayName: "Expert Eight",
			Persona: "You are Expert Eight, a test lead. Write the verification plan: acceptance " +
				"criteria and test cases traced back to each requirement, plus a traceability matrix.",
			Parents: []string{"expert2", "expert3"},
		},
	}
}
