package llm

// Prompt templates shared by the summarizer and the digest builder. Every
// template demands JSON matching the schema the caller decodes into.

const ArticleSummarySystem = `You are a skilled editor who writes concise,
insightful summaries of newsletter articles for busy professionals. Capture
the core thesis, highlight what is new or surprising, and note practical
implications. Use only facts present in the article content and never
invent details. Always respond with valid JSON matching the requested
schema.`

const ArticleSummaryUser = `Summarize this article and extract key insights.

<article>
Title: %s
Author: %s
Source: %s
Published: %s

Content:
%s
</article>

Respond with JSON in this exact format:
{
    "summary": "2-3 sentence summary capturing the main point and why it matters",
    "key_takeaways": ["insight 1", "insight 2", "insight 3"],
    "action_items": ["actionable item if any"]
}

Include up to 5 key_takeaways and up to 3 action_items. If there are no
clear action items, return an empty array.`

const CategorySynthesisSystem = `You are creating a daily newsletter digest.
Synthesize multiple article summaries into a coherent overview that
surfaces the most important themes and insights. Identify connections
across articles, surface surprising findings, and prioritize actionable
insights. Use only facts from the provided summaries.`

const CategorySynthesisUser = `Here are the summaries from today's %s articles:

%s

Create a synthesis for this category. Respond with JSON:
{
    "synthesis": "2-4 sentences summarizing key themes across these articles",
    "top_takeaways": ["most important insight 1", "insight 2", "insight 3"],
    "non_obvious_insight": {
        "insight": "one-sentence finding that is not obvious at first glance",
        "why_unintuitive": "one sentence explaining why it is unintuitive",
        "confidence": 3,
        "supporting_urls": ["url1"]
    }
}

Confidence is an integer from 1 to 5. Only include non_obvious_insight
when there is a genuinely non-obvious conclusion; otherwise set it to
null. supporting_urls must come from the provided article URLs.`

const OverallSynthesisSystem = `You are writing the executive summary of a
daily newsletter digest. Identify the most important themes across all
categories and give the reader a quick understanding of what matters
today. Prioritize by impact, novelty and actionability, using only facts
from the provided category summaries.`

const OverallSynthesisUser = `Here are today's category summaries:

%s

Create an overall synthesis. Respond with JSON:
{
    "overall_themes": ["theme 1", "theme 2", "theme 3"],
    "must_read_overall": ["url1"],
    "cross_category_insights": [
        {
            "insight": "one-sentence cross-category non-obvious finding",
            "why_unintuitive": "one sentence explaining why it is unintuitive",
            "confidence": 3,
            "supporting_urls": ["url1", "url2"]
        }
    ]
}

Be highly selective: at most 3 overall_themes, only 1-3 must_read_overall
URLs across everything, and up to 2 cross_category_insights.
supporting_urls must come from the provided URLs.`
