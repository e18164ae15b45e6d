// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/internal/catalog"
	"github.com/pdiddy/deep-research/pkg/types"
)

const reportSystem = `You are a research analyst. Write a thorough, well-structured analytical
report answering the research question using ONLY the numbered sources
provided. Cite every factual claim inline with its source number, e.g. [3].
Organize by theme, open with a summary of findings, and note where sources
disagree. Do not invent facts absent from the sources.`

const digestSystem = `You are a research summarizer. Compress the numbered sources into a compact
digest roughly one eighth their combined length. Respond with a JSON object:
{"digest": "...", "contradictions": ["..."]}. Preserve source numbers next to
every fact, e.g. [3]. You must not invent facts: every statement in the digest
must be traceable to a source. List contradictions between sources in this
batch explicitly.`

const reduceSystem = `You are a research analyst. Combine the batch digests into ONE coherent
analytical report answering the research question. Organize by theme, never by
batch order. Keep the numbered citations exactly as they appear in the
digests, e.g. [3]. Open with a summary of findings and note disagreements
between sources. Do not invent facts absent from the digests.`

const enrichSystem = `You are a research analyst revising an existing report. Merge the new source
material into the report. Integrate, don't duplicate: add only information the
report does not already cover, keep its structure and existing citations, and
cite new facts with the new source numbers. Return the complete revised
report, not a diff.`

const verifySystem = `You are a fact checker. Re-read the report against the source digests and
classify every factual claim as Verified (supported by a digest), Unverified
(absent from the digests), or Contradicted. Remove unverified claims or mark
them "[unverified]". Keep contradicted claims but note the disagreement.
Return the full corrected report followed by a footer:
"---\nVerification: N verified, N unverified, N contradicted."`

// perSourceChars caps how much of one source is inlined into a prompt.
const perSourceChars = 6000

// formatSources renders sources as numbered context blocks. Numbering starts
// at startNum so enrichment rounds keep globally unique citation numbers.
func formatSources(sources []types.EvaluatedSource, startNum int) string {
	var b strings.Builder
	for i, src := range sources {
		text := src.Content
		if text == "" {
			text = src.Snippet
		}
		if len(text) > perSourceChars {
			text = text[:perSourceChars]
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n", startNum+i, src.Title, src.URL)
		if !src.Published.IsZero() {
			fmt.Fprintf(&b, "Published: %s\n", src.Published.Format("2006-01-02"))
		}
		if src.Flagged {
			b.WriteString("Note: low-credibility source, weigh accordingly.\n")
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// rawDigest is the degraded substitute for a failed MAP batch: headline and
// snippet per source, citations intact.
func rawDigest(sources []types.EvaluatedSource, startNum int) string {
	var b strings.Builder
	for i, src := range sources {
		snippet := src.Snippet
		if len(snippet) > 400 {
			snippet = snippet[:400]
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", startNum+i, src.Title, snippet)
	}
	return b.String()
}

// baseSelectLimit returns the model's base-tier select limit from the
// catalog, used to size MAP batches.
func baseSelectLimit(model string) int {
	entry, _ := catalog.Lookup(model)
	return entry.Limits.Base.MaxSelect
}
