package llm

import (
	"strings"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

// NoOutput is the extraction reply meaning "nothing relevant".
const NoOutput = "NO_OUTPUT"

const answerTemplate = `Given the following context:

{context}

Answer the following question: {question}

If the answer is not explicitly stated in the context, try to find keywords matching. Else, say 'Data Not Available'.`

const sectionInstruction = " Include the section number in your response when possible."

const extractTemplate = `Given the following question and context, extract any part of the context *AS IS* that is relevant to answer the question. If none of the context is relevant return ` + NoOutput + `.

Remember, *DO NOT* edit the extracted parts of the context.

> Question: {question}
> Context:
>>>
{context}
>>>
Extracted relevant parts:`

// BuildPrompt renders the answer prompt. With includeSection each document
// is prefixed with "[Section X]" and the model is asked to cite the section.
// Documents are separated by a blank line.
func BuildPrompt(question string, docs []chunker.Chunk, includeSection bool) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		if includeSection {
			parts[i] = "[Section " + d.Section + "] " + d.Text
		} else {
			parts[i] = d.Text
		}
	}
	prompt := strings.NewReplacer(
		"{context}", strings.Join(parts, "\n\n"),
		"{question}", question,
	).Replace(answerTemplate)
	if includeSection {
		prompt += sectionInstruction
	}
	return prompt
}

// BuildExtractionPrompt renders the contextual compression prompt for one
// chunk.
func BuildExtractionPrompt(text, question string) string {
	return strings.NewReplacer(
		"{question}", question,
		"{context}", text,
	).Replace(extractTemplate)
}
