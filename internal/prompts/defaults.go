package prompts

// Template ids used across the workflow stages.
const (
	DiscoveryMessage   = "discovery-message"
	DiscoverySummarize = "discovery-summarize"
	PeopleSystem       = "people-system-prompt"
	PeopleUser         = "people-user-prompt"
	ResearchUser       = "research-user-prompt"
	ResearchSystem     = "research-system-prompt"
	MeetingSubReport   = "meeting-sub-report-prompt"
	MeetingExpert      = "meeting-expert-instructions"
	ReportSystem       = "report-system-prompt"
	ReportUser         = "report-user-prompt"
)

// Placeholder tokens replaced by literal substring substitution.
const (
	PlaceholderPersonDescription  = "{PERSON_DESCRIPTION}"
	PlaceholderSummary            = "{SUMMARY}"
	PlaceholderMeetingDescription = "{MEETING_DESCRIPTION}"
	PlaceholderMeetingTopic       = "{MEETING_TOPIC}"
	PlaceholderTranscript         = "{TRANSCRIPT}"
	PlaceholderExecutiveSummary   = "{EXECUTIVE_SUMMARY}"
	PlaceholderDiscoverySummary   = "{DISCOVERY_SUMMARY}"
	PlaceholderCombinedSubReports = "{COMBINED_SUB_REPORTS}"
)

// Defaults 内置模板 / Built-in prompt templates
var Defaults = map[string]string{
	DiscoveryMessage: `You are going to ask me a series of small concise questions to get to understand a task that I will ask a think tank to tackle. This is the phase where you ask me questions to understand the task and not to find the solution. Ask me questions to see what I care about. Be smart about it, start with broad questions then narrow down to the details. Ask simple one line questions. Be friendly.`,

	DiscoverySummarize: `Write a concise summary of the task the user wants to achieve. It should be two paragraphs long. Make it look like a McKinsey Executive task summary. Don't use hashtags for headings, just bold it.`,

	PeopleSystem: `You are a helpful assistant that analyzes tasks and identifies appropriate people who could perform them. Return your results as a JSON array of objects with 'title' and 'description' fields.`,

	PeopleUser: `I'd like to assemble a team of five people from interdisciplinary backgrounds to tackle the following task. I'd like the five interdisciplinary members from different backgrounds to be able to bring to the table unique perspectives from leading former projects in this space to understanding human behavior to create strong incentives to attract people.

{EXECUTIVE_SUMMARY}

Describe five people you would choose for this role. Make it diverse in the skillset. Be creative.

Return your response as a JSON array with exactly 5 objects, each having "title" and "description" fields. Example format:
[{"title": "Title Here", "description": "Description here"}, ...]`,

	ResearchUser: `You are working as a research consultant. Your role is to conduct research and identify relevant precedents and examples that can inform policy and implementation strategies.

You have been provided with an executive summary of a task that the user is working to accomplish:

{EXECUTIVE_SUMMARY}

Your assignment is to research and find ten previous examples of similar work done by other nations, companies, organizations, or institutions that are relevant to accomplishing the task described in the executive summary.

Return your response as a JSON array with exactly 10 objects, each having "topic", "description", and "citation" fields. Example format:
[{"topic": "Topic Name", "description": "Detailed description", "citation": "Source URL or publication"}, ...]`,

	ResearchSystem: `You will be working on researching information for a task. You are a consultant who uses web search to find current, accurate information from reliable sources. The user will provide an executive summary of the task at hand. Output each search result with a clear topic name, detailed description with specific facts, and proper source citation.`,

	MeetingSubReport: `You are creating a summary report for a meeting. The meeting was about:

Topic: {MEETING_TOPIC}
Description: {MEETING_DESCRIPTION}

Here is the full conversation transcript:
{TRANSCRIPT}

Please create a concise summary report that captures:
1. The main insights and perspectives shared by team members
2. Key decisions or recommendations that emerged
3. Important concerns or considerations raised
4. Next steps or action items if any were discussed

Write this as a professional summary report in 2-3 paragraphs.`,

	MeetingExpert: `This is who you are: {PERSON_DESCRIPTION}

Meeting context: {SUMMARY}

Current Focus: {MEETING_DESCRIPTION}

Respond to your colleagues in one simple paragraph. Be focused on the task and always raise your unique perspective and speak out and collaborate with your brilliant team to build great ideas.`,

	ReportSystem: `You are a seasoned executive brief writer who's worked for senior government decision-makers. You are tasked with creating a comprehensive final report from sub reports of various meetings. Create cohesive report that tells a story. Highlight creative ideas. Give suggestions on implementation ideas. Identify common themes and patterns across all meetings. Organize the ideas and insights in a logical structure. Use paragraphs and use formal English. Use markdown formatting for headers and emphasis.`,

	ReportUser: `You are a seasoned executive brief writer who's worked for senior government decision-makers. You are tasked with creating a comprehensive final report from sub reports of various meetings. This is the task at hand:

{DISCOVERY_SUMMARY}

And here are the summaries from the meetings:
{COMBINED_SUB_REPORTS}`,
}
