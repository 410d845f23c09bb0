// Package prompt assembles the text handed to the external agent.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/chat"
)

// Input is everything Build needs; it carries no references to live state.
type Input struct {
	Context          []chat.Turn
	Message          string
	WorkingDirectory string
	Markdown         bool
	Language         string
}

const defaultLanguage = "Japanese"

const (
	workingDirectoryHeader = `WORKING DIRECTORY: %[1]s

Working directory rules:
1. Your current working directory is %[1]s
2. Perform every file operation inside %[1]s
3. Check whether files exist only inside %[1]s
4. Ignore files that live in any other directory
5. Use paths starting with %[1]s/ for Read, Write, Edit and Glob tools
6. Files outside the working directory are irrelevant, even if they exist`

	contextHeader = "Previous conversation:"

	workingDirectoryNotes = `Working directory notes:
- The working directory of this chat session is '%[1]s'
- When asked to change directory or run cd, state in the answer that the current directory is '%[1]s'
- The process was started with cwd set to '%[1]s'`

	closingHeader = "Instructions you must follow:"
)

// Closing directives. Markdown requests swap the code-centric pair for markdown formatting.
const (
	directiveStayInDirectory  = "Use only the working directory %s; do not touch files elsewhere"
	directiveCreateIfMissing  = "When asked to create a file, check %s first and create it right away if it does not exist"
	directiveKeepContext      = "Understand the previous conversation and answer in that context"
	directiveFollowChoice     = "If the user is answering a choice you offered earlier, carry out that choice"
	directiveShowContent      = "When reading a file, show its actual content rather than a summary"
	directiveShowCode         = "Show the actual source code in fenced code blocks instead of describing it"
	directiveMarkdownRender   = "For .md files, present the content using Markdown formatting"
	directiveMarkdownElements = "Use code blocks and other Markdown elements where they help"
	directiveLanguageTemplate = "Respond in %s"
)

var markdownPattern = regexp.MustCompile(`(?i)\.md\b|README|REQUIREMENTS|CHANGELOG|マークダウン|markdown`)

// IsMarkdownRequest reports whether the message is about markdown documents.
func IsMarkdownRequest(message string) bool {
	return markdownPattern.MatchString(message)
}

// Build assembles the prompt. Segment order is fixed: directory header,
// conversation context, user message, directory notes, closing directives.
func Build(in Input) string {
	dir := in.WorkingDirectory
	lang := in.Language
	if lang == "" {
		lang = defaultLanguage
	}

	sections := []string{fmt.Sprintf(workingDirectoryHeader, dir)}
	if ctx := FormatContext(in.Context); ctx != "" {
		sections = append(sections, contextHeader+"\n"+ctx)
	}
	sections = append(sections,
		in.Message,
		fmt.Sprintf(workingDirectoryNotes, dir),
		closingHeader+"\n"+numbered(directives(dir, lang, in.Markdown)),
	)
	return strings.Join(sections, "\n\n")
}

func directives(dir, lang string, markdown bool) []string {
	list := []string{
		fmt.Sprintf(directiveStayInDirectory, dir),
		fmt.Sprintf(directiveCreateIfMissing, dir),
		directiveKeepContext,
	}
	if markdown {
		list = append(list, directiveShowContent, directiveMarkdownRender, directiveMarkdownElements)
	} else {
		list = append(list, directiveFollowChoice, directiveShowContent, directiveShowCode)
	}
	return append(list, fmt.Sprintf(directiveLanguageTemplate, lang))
}

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}
