package plangen

import (
	"fmt"
	"strings"
)

// systemPrompt はプラン生成のシステムプロンプト。
// 厳密なJSONのみを返すよう指示する（コーパス内のプロンプト慣習に準拠）。
const systemPrompt = `You are an expert career coach who designs day-by-day learning plans.
Return your result as a single strict JSON object with this shape:

{
  "summary": string,
  "days": [
    {
      "dayIndex": number,
      "date": "YYYY-MM-DD",
      "focus": string,
      "tasks": [
        {
          "title": string,
          "description": string,
          "durationMinutes": number,
          "resources": [string]
        }
      ]
    }
  ]
}

Rules:
- "days" must contain exactly the requested number of entries.
- Every task needs a non-empty title and a durationMinutes between 15 and 480.
- Each task may include at most 3 resource links, all well-formed http(s) URLs.
- Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`

// buildPrompt はスペックからsystem/userプロンプトを構築する。
// スキルギャップ分析が含まれる場合は、その補強を優先するプランを要求する。
func buildPrompt(spec GenerateSpec) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a %d-day learning plan for someone targeting the role of %q.\n",
		spec.DurationDays, spec.Role)
	fmt.Fprintf(&b, "The plan starts on %s.\n", spec.StartDate.Format("2006-01-02"))

	if spec.DailyHours > 0 {
		fmt.Fprintf(&b, "The learner can spend about %.1f hours per day.\n", spec.DailyHours)
	} else if spec.WeeklyHours > 0 {
		fmt.Fprintf(&b, "The learner can spend about %d hours per week.\n", spec.WeeklyHours)
	}

	if spec.ExperienceSummary != "" {
		fmt.Fprintf(&b, "\nLearner background:\n%s\n", spec.ExperienceSummary)
	}

	if len(spec.FocusAreas) > 0 {
		fmt.Fprintf(&b, "\nRequested focus areas: %s\n", strings.Join(spec.FocusAreas, ", "))
	}

	if spec.SkillGap != nil {
		b.WriteString("\nA skill-gap analysis is available. Prioritize closing these gaps:\n")
		if len(spec.SkillGap.MissingCoreSkills) > 0 {
			fmt.Fprintf(&b, "- Missing core skills: %s\n",
				strings.Join(spec.SkillGap.MissingCoreSkills, ", "))
		}
		if len(spec.SkillGap.PriorityGaps) > 0 {
			fmt.Fprintf(&b, "- Prioritized experience gaps: %s\n",
				strings.Join(spec.SkillGap.PriorityGaps, ", "))
		}
		b.WriteString("Order the early days of the plan around remediation of these gaps.\n")
	}

	if spec.AdditionalContext != "" {
		fmt.Fprintf(&b, "\nAdditional context from the learner:\n%s\n", spec.AdditionalContext)
	}

	return systemPrompt, b.String()
}
