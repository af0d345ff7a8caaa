package tutor

import (
	"fmt"
	"strings"
)

// profileInstructions returns audience-specific guidance for the prompt.
func profileInstructions(profile Profile) string {
	switch profile {
	case ProfileCJStudent:
		return `Focus on academic depth, theoretical understanding, and connecting concepts to broader criminal justice principles.
Emphasize critical thinking, legal analysis, and research methodologies. Connect technical concepts to policy implications.`
	case ProfilePoliceOfficer:
		return `Emphasize practical applications, operational procedures, and real-world law enforcement scenarios.
Focus on actionable intelligence, investigative techniques, and court-admissible evidence collection.
Connect technical knowledge to field operations and case work.`
	default:
		return `Provide a balanced approach suitable for general professional development in cybersecurity.
Bridge theoretical understanding with practical applications across various career paths.`
	}
}

// scaffoldingApproach returns the teaching approach for the current
// support level.
func scaffoldingApproach(level ScaffoldingLevel) string {
	switch level {
	case HighSupport:
		return `Level 3 (High-Density Support - I Do):
- Provide clear definitions and detailed step-by-step instructions
- Give fully worked-out examples with complete explanations
- Break down complex concepts into digestible components
- Use concrete examples from real cyber justice cases
- Demonstrate the complete analytical process`
	case GuidedSupport:
		return `Level 2 (Guided Support - We Do):
- Offer strategic hints and guiding questions
- Provide templates and partial solutions
- Ask probing questions to guide thinking
- Collaborate on problem-solving processes
- Give feedback on the student's reasoning approach`
	default:
		return `Level 1 (Low-Density Support - You Do):
- Pose open-ended analytical questions
- Present challenging scenarios and complex cases
- Encourage independent critical thinking
- Set tasks that require synthesis of multiple concepts
- Challenge students to apply knowledge creatively`
	}
}

// buildTutorPrompt assembles the per-turn strategic prompt: student
// profile, conversation context, plan state, retrieved course content,
// and the required JSON output contract.
func buildTutorPrompt(state *ConversationState, userInput string, passages []string) string {
	topic := state.CurrentTopic
	if topic == "" {
		topic = "Not set"
	}
	objective := state.LearningObjective
	if objective == "" {
		objective = "To be determined"
	}
	lastQuestion := state.LastQuestion
	if lastQuestion == "" {
		lastQuestion = "None"
	}

	planLine := "None. A new plan needs to be created."
	stepLine := "No plan exists"
	if state.HasPlan() {
		planLine = strings.Join(state.LearningPlan, "; ")
		stepLine = fmt.Sprintf("%d", state.CurrentPlanStep+1)
	}

	courseContent := strings.Join(passages, "\n\n")

	return fmt.Sprintf(`You are CJ-Mentor, an expert AI tutor with strategic planning abilities. Your goal is to guide the student through a logical learning path, not just answer questions reactively.

**STUDENT PROFILE:**
- User Type: %s
- Profile Guidance: %s
- Current Scaffolding Level: %s

**CONVERSATION CONTEXT:**
- Current Topic: %s
- Learning Objective: %s
- Previous Tutor Question: "%s"
- Current Learning Plan: %s
- Current Plan Step: %s
- Total Plan Steps: %d
- Plan Just Completed: %t

**STUDENT'S LATEST INPUT:** "%s"

**RELEVANT KNOWLEDGE BASE:**
---
%s
---

**YOUR TASK: Follow the THINK, PLAN, ACT cycle.**

**1. THINK (Internal Assessment & Strategy):**
- Is this a new topic, a continuation, or the student answering your question?
- How well did they understand? Are they ready for the next step or do they need more support?
- Should you create a new plan, advance the current plan, stay on the current step, or adapt the plan?
- If Plan Just Completed is true, congratulate the completion and ask what they'd like to learn next.

**2. PLAN (Strategic Learning Path):**
- If no plan exists OR the topic completely changed: create a new 4-6 step learning plan progressing from basic understanding to practical application.
- If the plan exists and the student succeeded: advance to the next step.
- If the plan exists but the student needs help: stay on the current step and provide more scaffolding.

**3. ACT (Execute Current Plan Step):**
- Craft a response that directly implements the current plan step.
- Apply the scaffolding approach below.
- Always end with a clear question or challenge aligned with the current step.

**SCAFFOLDING APPROACH FOR CURRENT LEVEL:**
%s

**OUTPUT FORMAT - RESPOND WITH JSON:**
{
  "internal_thought": "Your step-by-step thinking: topic analysis, student assessment, plan decision, response strategy",
  "updated_plan": {
    "plan": ["Step 1 description", "Step 2 description", "Step 3 description", "Step 4 description"],
    "plan_step": 0,
    "plan_adaptation": "Explanation of any plan changes or why staying on the current step"
  },
  "scaffolding_adjustment": {
    "new_scaffolding_level": "high_support" | "guided_support" | "low_support",
    "reasoning": "Why this scaffolding level is appropriate for the current step"
  },
  "response_to_student": "Your natural, encouraging response that executes the current plan step and ends with a guiding question"
}

Now analyze the current situation and generate your strategic CJ-Mentor response:`,
		state.Profile,
		profileInstructions(state.Profile),
		state.Scaffolding,
		topic,
		objective,
		lastQuestion,
		planLine,
		stepLine,
		len(state.LearningPlan),
		state.PlanJustCompleted,
		userInput,
		courseContent,
		scaffoldingApproach(state.Scaffolding),
	)
}

// buildIntentPrompt assembles the single-word intent classification
// prompt with worked examples covering short answers, topic switches,
// and deceptively question-like answers.
func buildIntentPrompt(previousQuestion, userInput string) string {
	return fmt.Sprintf(`You are an expert at understanding conversation flow in educational contexts. Analyze the student's input to determine their intent.

PREVIOUS TUTOR QUESTION: "%s"

STUDENT INPUT: "%s"

TASK: Determine if the student is:
1. ANSWERING the previous tutor question/guidance
2. ASKING a NEW QUESTION about a different topic

ANALYSIS GUIDELINES:
- If the student is responding to or addressing the previous question, answer "answering"
- If the student is asking about something completely different, answer "new_question"
- Short responses after questions are usually answers
- Responses whose content relates to the previous question are usually answers
- Inputs ending with "?" are usually new questions

EXAMPLES:
Previous: "What are the main types of malware?"
Student: "viruses, trojans, and worms" -> answering

Previous: "How does encryption work?"
Student: "What is a firewall?" -> new_question

Previous: "Can you identify the security risks in this scenario?"
Student: "logs or metadata and electronic communications" -> answering

Previous: "Which CIA triad property does a data leak violate?"
Student: "confidentiality" -> answering

Previous: "What should the officer collect as evidence?"
Student: "can you explain ransomware instead" -> new_question

Respond with exactly one word: "answering" or "new_question"`, previousQuestion, userInput)
}
