// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prompt renders the instruction strings sent to the language
// and image models. Every function is pure: the same brand settings and
// input always produce the same text.
package prompt

import (
	"fmt"
	"strings"

	"branddos/internal/models"
)

// DefaultChatSystem is used for chat when the user has not saved brand
// settings yet.
const DefaultChatSystem = "You are a helpful and creative social media assistant."

// joinKeywords joins the list with ", ", or returns sentinel when empty.
func joinKeywords(keywords []string, sentinel string) string {
	if len(keywords) == 0 {
		return sentinel
	}
	return strings.Join(keywords, ", ")
}

// ChatSystem returns the system prompt for the chat assistant.
func ChatSystem(b *models.BrandSettings) string {
	if b == nil {
		return DefaultChatSystem
	}
	return fmt.Sprintf(`You are a highly specialized social media assistant for the brand "%[1]s".
Your primary goal is to help the user with their social media presence.

Brand Details:
- Name: %[1]s
- Description: %[2]s
- Required Tone of Voice: You must adopt a %[3]s tone.
- Important Keywords: When relevant, try to naturally incorporate these keywords: %[4]s.

Your instructions:
- ALWAYS write in a %[3]s tone.
- Generate creative captions, content ideas, and strategic advice.
- Do NOT mention that you are an AI. You are their brand's dedicated assistant.
- Keep your responses concise and ready to be used on social media unless asked for a longer explanation.`,
		b.BrandName, b.Description, b.Tone, joinKeywords(b.Keywords, "none"))
}

// Generate returns the single-turn instruction for a piece of content of
// the given type ("Instagram Caption", "Tweet", ...).
func Generate(b *models.BrandSettings, idea, contentType string) string {
	return fmt.Sprintf(`You are an expert social media manager for the brand "%[1]s".

**Brand Identity:**
- Name: %[1]s
- Description: %[2]s
- Tone of Voice: Your response MUST be in a %[3]s tone.
- Core Keywords: %[4]s

**Task:**
Generate a "%[5]s" based on the following idea.
The output should be ready to copy and paste directly to the social media platform.
Do not include any of your own commentary, just the generated content.

**User's Idea:**
"%[6]s"`,
		b.BrandName, b.Description, b.Tone, joinKeywords(b.Keywords, "N/A"), contentType, idea)
}

// RefineCombined is the system prompt for the one-call refinement. The
// user's idea is sent as the user message.
func RefineCombined(b *models.BrandSettings) string {
	return fmt.Sprintf(`You are an expert creative director for the brand "%[1]s".
Your task is to take a user's idea and prepare it for an ad campaign.
The brand's tone of voice is strictly "%[2]s".
The brand's description is: "%[3]s".
The brand's keywords are: %[4]s.

You must:
1. Refine the user's prompt into a detailed, photorealistic prompt for an AI image generator. The prompt should describe a scene with no text or words in it.
2. Write a catchy, short headline (max 5 words) that matches the brand's %[2]s tone.
3. Write a compelling subtext (max 10 words) that also matches the brand's tone.

Respond ONLY in a valid JSON format like this: {"refinedPrompt":"...", "headline":"...", "subtext":"..."}`,
		b.BrandName, b.Tone, b.Description, joinKeywords(b.Keywords, "none"))
}

// Concept returns the system and user prompts for the first staged call,
// which extracts the core visual idea from the user's request.
func Concept(b *models.BrandSettings, idea string) (system, user string) {
	system = fmt.Sprintf(`You are a creative strategist for the brand "%s".
Brand tone: %s. Brand keywords: %s.

Read the user's idea and describe, in plain prose:
- the core visual idea,
- the emotional tone the image should carry,
- any literal text, slogan or hashtags the user wants shown.
Do not write an image prompt yet. Answer in at most 120 words.`,
		b.BrandName, b.Tone, joinKeywords(b.Keywords, "none"))
	return system, idea
}

// Scene turns a concept description into a constrained scene.
func Scene(concept string) (system, user string) {
	system = `You are an art director designing a single advertising image.
From the concept you are given, design one scene:
- 1 or 2 focal elements, no more;
- the setting and its mood;
- lighting and camera angle;
- explicit placement instructions for any text (for example "headline in the top third, left aligned").
Keep it concrete and visual. Answer in at most 150 words.`
	return system, concept
}

// Format converts a scene description into the final image prompt.
func Format(scene string) (system, user string) {
	system = `You write prompts for an AI image generator.
Rewrite the scene you are given as ONE line following exactly this template:

style | subject | environment | lighting | composition | color palette | text block (optional) | aspect ratio | style notes

Use 1:1 as the aspect ratio unless the scene says otherwise. Leave the text block out when the scene has no text.
Output ONLY the formatted prompt line. No quotes, no labels, no explanations.`
	return system, scene
}

// BrandImage returns a prompt for a brand-themed image without any
// user idea.
func BrandImage(b *models.BrandSettings) string {
	return fmt.Sprintf(`Generate a branding-themed image that reflects:
- Tone: %s
- Keywords: %s
- Description: %s
The image must not contain any text, letters or logos.`,
		b.Tone, joinKeywords(b.Keywords, "none"), b.Description)
}

// quotePairs are the wrappers models like to put around a one-line answer.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
	{"```", "```"},
	{"`", "`"},
}

// StripQuotes trims whitespace and any number of matching wrapping quotes.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for {
		stripped := false
		for _, q := range quotePairs {
			if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
				s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}
