// Package prompts groups the LLM prompts behind a strategy object. A family
// is selected from the configured smart model; vendor families may reframe
// document context but must keep output shapes parseable by the same
// tolerant parsers.
package prompts

import (
	"fmt"
	"strings"
	"time"
)

// ToolInfo describes one MCP tool for the selection prompt.
type ToolInfo struct {
	Index       int
	Name        string
	Description string
}

// Family is the prompt strategy surface consumed by the planner, the MCP
// subsystem, the curator, the persona chooser and the report generator.
type Family interface {
	AutoAgentInstructions() string
	SearchQueriesPrompt(query, parentQuery, reportType string, maxIterations int, searchContext string) string
	ReportPrompt(query, context, reportFormat, tone, language string, totalWords int) string
	ResourceReportPrompt(query, context, reportFormat, language string, totalWords int) string
	OutlineReportPrompt(query, context, language string) string
	CustomReportPrompt(customPrompt, context string) string
	SubtopicReportPrompt(mainTopic, subtopic, context string, existingHeaders []string, tone, language string, totalWords int) string
	IntroductionPrompt(query, researchSummary, language string) string
	ConclusionPrompt(query, reportContent, language string) string
	SubtopicsPrompt(query, context string, maxSubtopics int) string
	DraftTitlesPrompt(mainTopic, subtopic, context string) string
	CurateSourcesPrompt(query, sourcesJSON string, maxResults int) string
	MCPToolSelectionPrompt(query string, tools []ToolInfo, maxTools int) string
	MCPResearchPrompt(query string, toolNames []string) string
	JoinLocalWebDocuments(docsContext, webContext string) string
}

// Select picks the family for the configured smart model identifier.
func Select(smartModel string) Family {
	if strings.Contains(strings.ToLower(smartModel), "granite") {
		return GraniteFamily{}
	}
	return DefaultFamily{}
}

// DefaultFamily is the stock prompt set.
type DefaultFamily struct{}

// AutoAgentInstructions returns the persona-selection system prompt. The
// response shape is a JSON object with "server" and "agent_role_prompt".
func (DefaultFamily) AutoAgentInstructions() string {
	return `This task involves researching a given topic, regardless of its complexity or the availability of a definitive answer. The research is conducted by a specific server, defined by its type and role, with each server requiring distinct instructions.
Agent
The server is determined by the field of the topic and the specific name of the server that could be utilized to research the topic provided. Agents are categorized by their area of expertise, and each server type is associated with a corresponding emoji.

examples:
task: "should I invest in apple stocks?"
response:
{
	"server": "💰 Finance Agent",
	"agent_role_prompt": "You are a seasoned finance analyst AI assistant. Your primary goal is to compose comprehensive, astute, impartial, and methodically arranged financial reports based on provided data and trends."
}
task: "what are the most interesting sites in Tel Aviv?"
response:
{
	"server": "🌍 Travel Agent",
	"agent_role_prompt": "You are a world-travelled AI tour guide assistant. Your main purpose is to draft engaging, insightful, unbiased, and well-structured travel reports on given locations, including history, attractions, and cultural insights."
}
Respond with JSON only.`
}

// SearchQueriesPrompt asks for exactly maxIterations queries as a JSON
// array of strings.
func (DefaultFamily) SearchQueriesPrompt(query, parentQuery, reportType string, maxIterations int, searchContext string) string {
	task := query
	if reportType == "detailed_report" || reportType == "subtopic_report" {
		task = fmt.Sprintf("%s - %s", parentQuery, query)
	}

	contextBlock := ""
	if searchContext != "" {
		contextBlock = fmt.Sprintf(`
You are a seasoned research assistant tasked with generating search queries to find relevant information for the following task: "%s".
Context: %s

Use this context to inform and refine your search queries. The context provides real-time web information that can help you generate more specific and relevant queries.
`, task, searchContext)
	}

	examples := make([]string, maxIterations)
	for i := range examples {
		examples[i] = fmt.Sprintf("%q", fmt.Sprintf("query %d", i+1))
	}

	return fmt.Sprintf(`Write %d google search queries to search online that form an objective opinion from the following task: "%s"

Assume the current date is %s if required.

%s
You must respond with a list of strings in the following format: [%s].
The response should contain ONLY the list.`,
		maxIterations, task, time.Now().UTC().Format("January 02, 2006"), contextBlock, strings.Join(examples, ", "))
}

// ReportPrompt builds the main research-report prompt.
func (DefaultFamily) ReportPrompt(query, context, reportFormat, tone, language string, totalWords int) string {
	return fmt.Sprintf(`Information: """%s"""

Using the above information, answer the following query or task: "%s" in a detailed report --
The report should focus on the answer to the query, should be well structured, informative, in-depth, and comprehensive, with facts and numbers if available and at least %d words.
You should strive to write the report as long as you can using all relevant and necessary information provided.

Please follow all of the following guidelines in your report:
- You MUST determine your own concrete and valid opinion based on the given information. Do NOT defer to general and meaningless conclusions.
- You MUST write the report with markdown syntax and %s format.
- You MUST prioritize the relevance, reliability, and significance of the sources you use.
- You must also prioritize new articles over older articles if the source can be trusted.
- Use in-text citation references in %s format and make it with markdown hyperlink placed at the end of the sentence or paragraph that references them like this: ([in-text citation](url)).
- You MUST write the report in the following tone: %s.
- You MUST write the report in the following language: %s.
- You MUST begin the report with a top-level markdown header.
- You MUST include all relevant source urls at the end of the report as references, and make sure to not add duplicated sources, but only one reference for each.
Please do your best, this is very important to my career.`,
		context, query, totalWords, reportFormat, reportFormat, tone, language)
}

// ResourceReportPrompt builds the bibliography-style report prompt.
func (DefaultFamily) ResourceReportPrompt(query, context, reportFormat, language string, totalWords int) string {
	return fmt.Sprintf(`"""%s"""

Based on the above information, generate a bibliography recommendation report for the following question or topic: "%s".
The report should provide a detailed analysis of each recommended resource, explaining how each source can contribute to finding answers to the research question.
Focus on the relevance, reliability, and significance of each source.
Ensure that the report is well-structured, informative, in-depth, and follows Markdown syntax.
Include relevant facts, figures, and numbers whenever available.
The report should have a minimum length of %d words.
You MUST write the report in the following language: %s.
You MUST include all relevant source urls.
Every url should be hyperlinked: [url website](url)`,
		context, query, totalWords, language)
}

// OutlineReportPrompt builds the outline report prompt.
func (DefaultFamily) OutlineReportPrompt(query, context, language string) string {
	return fmt.Sprintf(`"""%s"""

Using the above information, generate an outline for a research report in Markdown syntax for the following question or topic: "%s".
The outline should provide a well-structured framework for the research report, including the main sections, subsections, and key points to be covered.
Use appropriate Markdown syntax to format the outline and ensure readability.
You MUST write the outline in the following language: %s.`,
		context, query, language)
}

// CustomReportPrompt passes the user's prompt through with the context.
func (DefaultFamily) CustomReportPrompt(customPrompt, context string) string {
	return fmt.Sprintf(`"%s"

%s`, context, customPrompt)
}

// SubtopicReportPrompt builds the per-subtopic section prompt.
func (DefaultFamily) SubtopicReportPrompt(mainTopic, subtopic, context string, existingHeaders []string, tone, language string, totalWords int) string {
	headers := "None yet."
	if len(existingHeaders) > 0 {
		headers = "- " + strings.Join(existingHeaders, "\n- ")
	}
	return fmt.Sprintf(`Context: "%s"

Main Topic and Subtopic: Using the latest information available, construct a detailed report on the subtopic "%s" under the main topic "%s".
You must limit the number of subsections to a maximum of 3.

Existing headers from other sections (do NOT repeat them):
%s

- Use markdown syntax, starting the section with an H2 header.
- The report should have a minimum length of %d words.
- Use in-text citations with markdown hyperlinks placed at the end of the sentence that references them.
- You MUST write the report in the following tone: %s.
- You MUST write the report in the following language: %s.
- Do NOT include a conclusion section.`,
		context, subtopic, mainTopic, headers, totalWords, tone, language)
}

// IntroductionPrompt builds the report-introduction prompt.
func (DefaultFamily) IntroductionPrompt(query, researchSummary, language string) string {
	return fmt.Sprintf(`%s

Using the above latest information, prepare a detailed report introduction on the topic -- %s.
- The introduction should be succinct, well-structured, informative with markdown syntax.
- As this introduction will be part of a larger report, do NOT include any other sections, which are generally present in a report.
- The introduction should be preceded by an H1 heading with a suitable topic for the entire report.
- You must use in-text citation references in markdown hyperlink format like this: ([in-text citation](url)).
- You MUST write the introduction in the following language: %s.`,
		researchSummary, query, language)
}

// ConclusionPrompt builds the report-conclusion prompt.
func (DefaultFamily) ConclusionPrompt(query, reportContent, language string) string {
	return fmt.Sprintf(`Based on the research report below and research task, please write a concise conclusion that summarizes the main findings and their implications:

Research task: %s

Research Report: %s

Your conclusion should:
1. Recap the main points of the research
2. Highlight the most important findings
3. Discuss any implications or next steps
4. Be approximately 2-3 paragraphs long

If there is no "## Conclusion" section title written at the end of the report, please add it to the top of your conclusion.
You must use in-text citation references in markdown hyperlink format like this: ([in-text citation](url)).
You MUST write the conclusion in the following language: %s.`,
		query, reportContent, language)
}

// SubtopicsPrompt asks for a JSON array of subtopic strings.
func (DefaultFamily) SubtopicsPrompt(query, context string, maxSubtopics int) string {
	return fmt.Sprintf(`Provided the main topic:

%s

and research data:

%s

- Construct a list of subtopics which indicate the headers of a report document to be generated on the task.
- There should NOT be any duplicate subtopics.
- Limit the number of subtopics to a maximum of %d.
- Finally order the subtopics by their tasks, in a relevant and meaningful order which is presentable in a detailed report.
- You must respond with a JSON array of strings in the following format: ["subtopic 1", "subtopic 2"].
The response should contain ONLY the list.`,
		query, context, maxSubtopics)
}

// DraftTitlesPrompt asks for draft section titles for a subtopic report.
func (DefaultFamily) DraftTitlesPrompt(mainTopic, subtopic, context string) string {
	return fmt.Sprintf(`"Context: "%s"

Main Topic and Subtopic: Using the latest information available, construct a draft section title headers for a detailed report on the subtopic "%s" under the main topic "%s".

- The section title headers should be relevant to the research data only.
- Use H3 markdown syntax ("### ") for each title.
- You must respond with the list of titles only, one per line.`,
		context, subtopic, mainTopic)
}

// CurateSourcesPrompt asks the model to keep the best sources, preserving
// their content, returning JSON in the exact input shape.
func (DefaultFamily) CurateSourcesPrompt(query, sourcesJSON string, maxResults int) string {
	return fmt.Sprintf(`Your goal is to evaluate and curate the provided scraped content for the research task: "%s"
while prioritizing the inclusion of relevant and high-quality information, especially sources containing statistics, numbers, or concrete data.

The final curated list will be used as context for creating a research report, so prioritize:
- Retaining as much original information as possible, with extra emphasis on sources featuring quantitative data or unique insights
- Including a wide range of perspectives and insights
- Filtering out clearly irrelevant or unusable content

EVALUATION GUIDELINES:
1. Assess each source based on:
   - Relevance: Include sources directly or partially connected to the research query. Err on the side of inclusion.
   - Credibility: Favor authoritative sources but retain others unless clearly untrustworthy.
   - Currency: Prefer recent information unless older data is essential or valuable.
2. Source Selection:
   - Include as many relevant sources as possible, up to %d, focusing on broad coverage and diversity.
   - Do NOT rewrite, summarize or condense any source content.
3. You must respond with the curated sources as a JSON list, in the exact same shape as the input.

SOURCES LIST TO EVALUATE:
%s

You MUST return the response in the exact same JSON format as the original sources list. The response should contain ONLY the list.`,
		query, maxResults, sourcesJSON)
}

// MCPToolSelectionPrompt asks for a JSON object selecting tool indices with
// relevance scores and rationales.
func (DefaultFamily) MCPToolSelectionPrompt(query string, tools []ToolInfo, maxTools int) string {
	var sb strings.Builder
	for _, t := range tools {
		desc := t.Description
		if desc == "" {
			desc = "No description available"
		}
		fmt.Fprintf(&sb, "%d. %s: %s\n", t.Index, t.Name, desc)
	}
	return fmt.Sprintf(`You are a research assistant selecting the most relevant tools for a research query.

RESEARCH QUERY: "%s"

AVAILABLE TOOLS:
%s
Select up to %d tools that are most relevant to answering this research query.

You must respond with a JSON object in the following format:
{
  "selected_tools": [
    {"index": <tool index>, "name": "<tool name>", "relevance_score": <0-10>, "reason": "<why this tool helps>"}
  ],
  "selection_reasoning": "<overall selection strategy>"
}
The response should contain ONLY the JSON object.`,
		query, sb.String(), maxTools)
}

// MCPResearchPrompt states the query and the bound tool names for the
// tool-calling research turn.
func (DefaultFamily) MCPResearchPrompt(query string, toolNames []string) string {
	return fmt.Sprintf(`You are a research assistant with access to specialized tools. Your task is to research the following query and provide comprehensive, accurate information.

RESEARCH QUERY: "%s"

AVAILABLE TOOLS: %s

Use the tools to gather the most relevant and recent information for the query. Call every tool that can contribute, then summarize what you found, citing which tool each piece of information came from.`,
		query, strings.Join(toolNames, ", "))
}

// JoinLocalWebDocuments joins document and web context, documents first.
func (DefaultFamily) JoinLocalWebDocuments(docsContext, webContext string) string {
	switch {
	case docsContext == "":
		return webContext
	case webContext == "":
		return docsContext
	}
	return fmt.Sprintf("Context from local documents: %s\n\nContext from web sources: %s", docsContext, webContext)
}

var _ Family = DefaultFamily{}

// GraniteFamily reframes document context the way IBM Granite models expect
// while keeping every output shape identical to the default family.
type GraniteFamily struct {
	DefaultFamily
}

// JoinLocalWebDocuments frames the two corpora as tagged documents.
func (GraniteFamily) JoinLocalWebDocuments(docsContext, webContext string) string {
	switch {
	case docsContext == "":
		return webContext
	case webContext == "":
		return docsContext
	}
	return fmt.Sprintf("<document>\n%s\n</document>\n\n<document>\n%s\n</document>", docsContext, webContext)
}

var _ Family = GraniteFamily{}
